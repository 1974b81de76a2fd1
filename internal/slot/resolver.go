package slot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/backend-segar/internal/dateutil"
	"github.com/noah-isme/backend-segar/internal/obs"
	"github.com/noah-isme/backend-segar/internal/session"
)

// Resolver intersects the slot catalog with every cart product's weekday
// restrictions and decides which slot a session may hold.
type Resolver struct {
	Catalog      *Catalog
	Restrictions *Restrictions
	Cal          dateutil.Calendar
	HorizonDays  int
	Log          zerolog.Logger
}

const defaultHorizonDays = 3

func (r *Resolver) horizon() int {
	if r.HorizonDays <= 0 {
		return defaultHorizonDays
	}
	return r.HorizonDays
}

// ComputeEligibleSlots returns the slots on a date that every product in the
// cart may use, in chronological order. Restriction lookups for distinct
// products run concurrently; a catalog failure yields an empty result.
func (r *Resolver) ComputeEligibleSlots(ctx context.Context, date string, productIDs []string) ([]DeliverySlot, error) {
	slots, err := r.Catalog.ListSlots(ctx, date)
	if err != nil {
		return []DeliverySlot{}, err
	}
	sets, err := r.blockedSets(ctx, date, productIDs)
	if err != nil {
		return []DeliverySlot{}, err
	}
	blocked := make(map[string]struct{})
	for _, names := range sets {
		for name := range names {
			blocked[name] = struct{}{}
		}
	}
	eligible := make([]DeliverySlot, 0, len(slots))
	for _, s := range slots {
		if !s.Available {
			continue
		}
		if _, bad := blocked[s.Name]; bad {
			continue
		}
		eligible = append(eligible, s)
	}
	return eligible, nil
}

// blockedSets fetches the restriction blacklist of every product for the
// date's weekday, keyed by product so a conflict can be attributed to the
// lines that caused it. Individual lookups fail open inside Restrictions;
// only a malformed date errors here.
func (r *Resolver) blockedSets(ctx context.Context, date string, productIDs []string) (map[string]map[string]struct{}, error) {
	if len(productIDs) == 0 {
		return map[string]map[string]struct{}{}, nil
	}
	day, err := r.Cal.Weekday(date)
	if err != nil {
		return nil, err
	}
	var mu sync.Mutex
	sets := make(map[string]map[string]struct{}, len(productIDs))
	g, gctx := errgroup.WithContext(ctx)
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		g.Go(func() error {
			names := r.Restrictions.Blocked(gctx, id, day)
			if len(names) == 0 {
				return nil
			}
			mu.Lock()
			sets[id] = names
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}

// FindNextAvailableSlot scans forward from startDate across the horizon and
// returns the first slot the whole cart is eligible for. An empty startDate
// starts from today in the reference timezone.
func (r *Resolver) FindNextAvailableSlot(ctx context.Context, productIDs []string, startDate string) (DeliverySlot, error) {
	date := startDate
	if date == "" {
		date = r.Cal.Today()
	}
	for i := 0; i < r.horizon(); i++ {
		eligible, err := r.ComputeEligibleSlots(ctx, date, productIDs)
		if err != nil {
			r.Log.Warn().Err(err).Str("date", date).Msg("skipping date during slot search")
		} else if len(eligible) > 0 {
			return eligible[0], nil
		}
		next, err := r.Cal.AddDays(date, 1)
		if err != nil {
			return DeliverySlot{}, err
		}
		date = next
	}
	return DeliverySlot{}, fmt.Errorf("searched %d days from %s: %w", r.horizon(), startDate, ErrNoSlotAvailable)
}

// Resolution is the outcome of ValidateAndSetSlot.
type Resolution struct {
	Slot     DeliverySlot `json:"slot"`
	Manual   bool         `json:"manual"`
	Revision uint64       `json:"revision"`
}

// ValidateAndSetSlot applies a slot to the session. A manual choice is
// adopted as-is after an eligibility check; otherwise the earliest eligible
// slot in the horizon is picked. revision is the cart revision the caller
// resolved against; if the session has moved on, the result is discarded.
func (r *Resolver) ValidateAndSetSlot(ctx context.Context, sess *session.Session, slotID, date string, manual bool, revision uint64) (Resolution, error) {
	if revision < sess.Revision {
		if obs.SlotResolutionsSuperseded != nil {
			obs.SlotResolutionsSuperseded.Inc()
		}
		return Resolution{}, fmt.Errorf("request revision %d, session revision %d: %w", revision, sess.Revision, ErrSuperseded)
	}

	var chosen DeliverySlot
	if manual {
		eligible, err := r.ComputeEligibleSlots(ctx, date, sess.ProductIDs())
		if err != nil {
			return Resolution{}, err
		}
		found := false
		for _, s := range eligible {
			if s.ID == slotID {
				chosen = s
				found = true
				break
			}
		}
		if !found {
			return Resolution{}, fmt.Errorf("slot %s on %s is not eligible for this cart: %w", slotID, date, ErrNoSlotAvailable)
		}
	} else {
		next, err := r.FindNextAvailableSlot(ctx, sess.ProductIDs(), date)
		if err != nil {
			return Resolution{}, err
		}
		chosen = next
	}

	sess.Slot.Apply(chosen.ID, chosen.Name, chosen.Date, manual, sess.Revision)
	return Resolution{Slot: chosen, Manual: manual, Revision: sess.Revision}, nil
}

// Revalidate checks whether the session's current selection is still eligible
// for the cart. It transitions the selection to conflict when the slot turned
// unavailable or a newly added product blocks it, and resolves a standing
// conflict once the cart is compatible again. When products are the cause,
// their IDs are returned sorted so callers can attribute the conflict to
// individual cart lines; a slot that vanished or filled up returns none.
func (r *Resolver) Revalidate(ctx context.Context, sess *session.Session) (bool, []string, error) {
	if sess.Slot.CurrentState() == session.SlotStateNone {
		return true, nil, nil
	}
	slots, err := r.Catalog.ListSlots(ctx, sess.Slot.Date)
	if err != nil {
		return false, nil, err
	}
	var current DeliverySlot
	found := false
	for _, s := range slots {
		if s.ID == sess.Slot.SlotID {
			current = s
			found = true
			break
		}
	}
	if !found || !current.Available {
		sess.Slot.MarkConflict()
		return false, nil, nil
	}
	sets, err := r.blockedSets(ctx, sess.Slot.Date, sess.ProductIDs())
	if err != nil {
		return false, nil, err
	}
	blocking := make([]string, 0)
	for id, names := range sets {
		if _, bad := names[current.Name]; bad {
			blocking = append(blocking, id)
		}
	}
	if len(blocking) > 0 {
		sort.Strings(blocking)
		sess.Slot.MarkConflict()
		return false, blocking, nil
	}
	sess.Slot.ResolveConflict()
	return true, nil, nil
}

// staleAfter bounds how long a resolver call may run before its context is
// released; selection requests should not outlive the shopper's patience.
const staleAfter = 10 * time.Second

// WithDeadline wraps ctx with the resolver's patience bound.
func WithDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, staleAfter)
}
