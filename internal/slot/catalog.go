package slot

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/backend-segar/internal/dateutil"
	"github.com/noah-isme/backend-segar/internal/obs"
)

// CatalogSource fetches the raw slot availability snapshot for a date.
type CatalogSource interface {
	SlotAvailability(ctx context.Context, date string) ([]DeliverySlot, error)
}

// Catalog exposes a point-in-time snapshot of delivery slots for a date.
// Concurrent requests for the same date share one upstream fetch; nothing is
// cached beyond that, so every render cycle observes fresh capacity truth.
type Catalog struct {
	Source CatalogSource
	Log    zerolog.Logger

	group singleflight.Group
}

// ListSlots returns the slots for a date sorted ascending by start time.
// Fetch failures fail closed: an empty snapshot plus the error, which callers
// surface as a warning rather than a hard failure.
func (c *Catalog) ListSlots(ctx context.Context, date string) ([]DeliverySlot, error) {
	if c == nil || c.Source == nil {
		return nil, errors.New("slot catalog not configured")
	}
	v, err, _ := c.group.Do(date, func() (any, error) {
		raw, err := c.Source.SlotAvailability(ctx, date)
		if err != nil {
			return nil, err
		}
		return normalize(raw, date), nil
	})
	if err != nil {
		countFetch("error")
		c.Log.Warn().Err(err).Str("date", date).Msg("slot availability fetch failed, treating date as having no slots")
		return []DeliverySlot{}, fmt.Errorf("list slots for %s: %w", date, err)
	}
	countFetch("ok")
	return v.([]DeliverySlot), nil
}

// normalize enforces the capacity invariant and ordering on a raw snapshot.
func normalize(raw []DeliverySlot, date string) []DeliverySlot {
	slots := make([]DeliverySlot, 0, len(raw))
	for _, s := range raw {
		if s.Date == "" {
			s.Date = date
		}
		if s.Capacity < 0 {
			s.Capacity = 0
		}
		if s.Booked < 0 {
			s.Booked = 0
		}
		if s.Booked > s.Capacity {
			s.Booked = s.Capacity
		}
		if s.Booked >= s.Capacity {
			s.Available = false
			if s.Reason == "" {
				s.Reason = "fully booked"
			}
		}
		if _, ok := dateutil.ClockMinutes(s.StartTime); !ok {
			s.StartTime = ""
		}
		if _, ok := dateutil.ClockMinutes(s.EndTime); !ok {
			s.EndTime = ""
		}
		slots = append(slots, s)
	}
	sort.SliceStable(slots, func(i, j int) bool {
		return startMinutes(slots[i]) < startMinutes(slots[j])
	})
	return slots
}

// startMinutes orders slots chronologically; slots with a malformed start
// time sort last.
func startMinutes(s DeliverySlot) int {
	m, ok := dateutil.ClockMinutes(s.StartTime)
	if !ok {
		return 24 * 60
	}
	return m
}

func countFetch(result string) {
	if obs.SlotFetchTotal != nil {
		obs.SlotFetchTotal.WithLabelValues(result).Inc()
	}
}
