// Package slot resolves which time-boxed delivery windows are valid for a
// cart. It combines the per-date slot catalog with per-product weekday
// restrictions, searches forward across a date horizon, and guards slot
// selection against stale resolver results.
package slot

import "errors"

// ErrNoSlotAvailable is returned when the whole horizon holds no eligible slot.
var ErrNoSlotAvailable = errors.New("no delivery slot available in horizon")

// ErrSuperseded indicates a resolver result was computed against an older
// cart revision and must be discarded.
var ErrSuperseded = errors.New("slot resolution superseded by a newer request")

// DeliverySlot is a named, time-boxed delivery capacity window for a date.
// Times are "HH:MM" strings in the storefront reference timezone; the catalog
// normalises malformed values at decode time.
type DeliverySlot struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Capacity  int    `json:"capacity"`
	Booked    int    `json:"booked"`
	Available bool   `json:"isAvailable"`
	Reason    string `json:"reason,omitempty"`
}
