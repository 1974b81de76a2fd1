package slot

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-segar/internal/obs"
)

// RestrictionSource fetches the blocked slot names for a product on a weekday.
type RestrictionSource interface {
	SlotRestrictions(ctx context.Context, productID string, day time.Weekday) ([]string, error)
}

// Restrictions answers per-product, per-weekday slot blacklists. Lookups fail
// open: a restriction-API outage degrades to "unrestricted" instead of
// blanking every slot list storewide. Each fail-open is logged and counted so
// an outage is visible; the authoritative check at order placement remains
// the backstop for genuinely restricted items.
type Restrictions struct {
	Source RestrictionSource
	Log    zerolog.Logger
}

// Blocked returns the set of slot names unavailable for the product on the
// given weekday. Never persisted beyond the current check.
func (r *Restrictions) Blocked(ctx context.Context, productID string, day time.Weekday) map[string]struct{} {
	if r == nil || r.Source == nil {
		return map[string]struct{}{}
	}
	names, err := r.Source.SlotRestrictions(ctx, productID, day)
	if err != nil {
		if obs.RestrictionFailOpenTotal != nil {
			obs.RestrictionFailOpenTotal.Inc()
		}
		r.Log.Warn().Err(err).
			Str("product_id", productID).
			Str("day", day.String()).
			Msg("restriction fetch failed, treating product as unrestricted")
		return map[string]struct{}{}
	}
	blocked := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		blocked[name] = struct{}{}
	}
	return blocked
}
