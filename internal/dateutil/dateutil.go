// Package dateutil centralises calendar and clock arithmetic for the
// storefront. All delivery scheduling happens in a single reference timezone
// regardless of where the server or the shopper runs, and every consumer
// receives time through an injectable clock so tests never depend on wall time.
package dateutil

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ClockLayout is the wire format for slot boundary times.
const ClockLayout = "15:04"

// Calendar resolves dates and weekdays in the reference timezone.
type Calendar struct {
	Loc *time.Location
	Now func() time.Time
}

// NewCalendar builds a Calendar for the named timezone. Unknown names fall
// back to UTC rather than failing, matching the defensive configuration
// policy of the rest of the service.
func NewCalendar(timezone string, now func() time.Time) Calendar {
	loc, err := time.LoadLocation(strings.TrimSpace(timezone))
	if err != nil || loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return Calendar{Loc: loc, Now: now}
}

func (c Calendar) loc() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

func (c Calendar) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Today returns the current date string in the reference timezone.
func (c Calendar) Today() string {
	return c.now().In(c.loc()).Format(DateLayout)
}

// ParseDate parses a wire date into midnight of the reference timezone.
func (c Calendar) ParseDate(date string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), c.loc())
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return t, nil
}

// AddDays shifts a wire date by n calendar days, returning the wire form.
func (c Calendar) AddDays(date string, n int) (string, error) {
	t, err := c.ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// Weekday reports the weekday of a wire date in the reference timezone.
func (c Calendar) Weekday(date string) (time.Weekday, error) {
	t, err := c.ParseDate(date)
	if err != nil {
		return time.Sunday, err
	}
	return t.Weekday(), nil
}

// ClockMinutes converts an "HH:MM" boundary into minutes since midnight.
// Malformed values report ok=false so callers can fall back instead of
// raising; the zero value sorts such entries deterministically.
func ClockMinutes(clock string) (int, bool) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(clock))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
