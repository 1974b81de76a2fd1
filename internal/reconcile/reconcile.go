// Package reconcile validates a cart against live inventory truth and the
// current slot selection, producing a corrected cart plus a human-readable
// issue list. Reconciliation is idempotent: running it twice against the same
// upstream state yields the same cart and no new issues.
package reconcile

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/backend-segar/internal/inventory"
	"github.com/noah-isme/backend-segar/internal/obs"
	"github.com/noah-isme/backend-segar/internal/session"
	"github.com/noah-isme/backend-segar/internal/slot"
)

// Issue reasons, in rule order. The first matching rule wins per cart line.
const (
	ReasonInactive         = "inactive"
	ReasonOutOfStock       = "out_of_stock"
	ReasonQuantityAdjusted = "quantity_adjusted"
	ReasonPriceChanged     = "price_changed"
	ReasonSlotUnavailable  = "slot_unavailable"
)

// Issue describes one correction applied to the cart.
type Issue struct {
	CartKey     string `json:"cartKey,omitempty"`
	ProductID   string `json:"productId,omitempty"`
	Name        string `json:"name,omitempty"`
	Reason      string `json:"reason"`
	Message     string `json:"message"`
	OldQuantity int    `json:"oldQuantity,omitempty"`
	NewQuantity int    `json:"newQuantity,omitempty"`
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	Items     []session.CartItem `json:"items"`
	Issues    []Issue            `json:"issues"`
	SlotState string             `json:"slotState"`
	Revision  uint64             `json:"revision"`
}

// Reconciler corrects carts against inventory and slot truth.
type Reconciler struct {
	Inventory inventory.Source
	Resolver  *slot.Resolver
	Log       zerolog.Logger
}

// Reconcile checks every cart line against a fresh inventory snapshot, then
// revalidates the slot selection against the corrected cart. Lines whose
// snapshot cannot be fetched are kept untouched rather than dropped on an
// outage. The session is mutated only when something actually changed.
func (r *Reconciler) Reconcile(ctx context.Context, sess *session.Session) (Result, error) {
	if r == nil || r.Inventory == nil {
		return Result{}, errors.New("reconciler not configured")
	}

	snaps, err := r.snapshots(ctx, sess.ProductIDs())
	if err != nil {
		return Result{}, err
	}

	kept := make([]session.CartItem, 0, len(sess.Items))
	issues := make([]Issue, 0)
	changed := false
	for _, item := range sess.Items {
		snap, ok := snaps[item.ProductID]
		if !ok {
			// Snapshot unavailable: keep the line, order placement is
			// the authoritative backstop.
			kept = append(kept, item)
			continue
		}
		switch {
		case !snap.Active:
			issues = append(issues, Issue{
				CartKey:   item.CartKey,
				ProductID: item.ProductID,
				Name:      item.Name,
				Reason:    ReasonInactive,
				Message:   item.Name + " is no longer sold and was removed from your cart",
			})
			changed = true
		case snap.Stock == 0:
			issues = append(issues, Issue{
				CartKey:   item.CartKey,
				ProductID: item.ProductID,
				Name:      item.Name,
				Reason:    ReasonOutOfStock,
				Message:   item.Name + " is out of stock and was removed from your cart",
			})
			changed = true
		default:
			limit := snap.Stock
			if snap.MaxOrderQuantity > 0 && snap.MaxOrderQuantity < limit {
				limit = snap.MaxOrderQuantity
			}
			if item.Quantity > limit {
				issues = append(issues, Issue{
					CartKey:     item.CartKey,
					ProductID:   item.ProductID,
					Name:        item.Name,
					Reason:      ReasonQuantityAdjusted,
					Message:     item.Name + " quantity was reduced to the available amount",
					OldQuantity: item.Quantity,
					NewQuantity: limit,
				})
				item.Quantity = limit
				changed = true
			}
			if priceDrifted(item, snap) {
				issues = append(issues, Issue{
					CartKey:   item.CartKey,
					ProductID: item.ProductID,
					Name:      item.Name,
					Reason:    ReasonPriceChanged,
					Message:   item.Name + " price was updated",
				})
				item.UnitPrice = snap.Price
				item.OfferPrice = snap.OfferPrice
				if item.OfferPrice == 0 {
					item.OfferPrice = snap.Price
				}
				changed = true
			}
			item.MaxOrderQuantity = snap.MaxOrderQuantity
			kept = append(kept, item)
		}
	}
	if changed {
		sess.ReplaceItems(kept)
	}

	if r.Resolver != nil && sess.Slot.CurrentState() != session.SlotStateNone {
		ok, blocking, err := r.Resolver.Revalidate(ctx, sess)
		switch {
		case err != nil:
			r.Log.Warn().Err(err).Msg("slot revalidation failed during reconcile")
		case ok:
		case len(blocking) > 0:
			// Attribute the conflict to the lines that caused it.
			culprits := make(map[string]struct{}, len(blocking))
			for _, id := range blocking {
				culprits[id] = struct{}{}
			}
			for _, item := range sess.Items {
				if _, bad := culprits[item.ProductID]; !bad {
					continue
				}
				issues = append(issues, Issue{
					CartKey:   item.CartKey,
					ProductID: item.ProductID,
					Name:      item.Name,
					Reason:    ReasonSlotUnavailable,
					Message:   item.Name + " cannot be delivered in the selected slot",
				})
			}
		default:
			issues = append(issues, Issue{
				Reason:  ReasonSlotUnavailable,
				Message: "the selected delivery slot is no longer available",
			})
		}
	}

	for _, issue := range issues {
		if obs.ReconcileIssuesTotal != nil {
			obs.ReconcileIssuesTotal.WithLabelValues(issue.Reason).Inc()
		}
	}
	return Result{
		Items:     sess.Items,
		Issues:    issues,
		SlotState: sess.Slot.CurrentState(),
		Revision:  sess.Revision,
	}, nil
}

// snapshots fetches every distinct product concurrently. Per-product fetch
// failures are logged and omitted from the map rather than failing the pass.
func (r *Reconciler) snapshots(ctx context.Context, productIDs []string) (map[string]inventory.Snapshot, error) {
	var mu sync.Mutex
	snaps := make(map[string]inventory.Snapshot, len(productIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range productIDs {
		g.Go(func() error {
			snap, err := r.Inventory.Product(gctx, id)
			if err != nil {
				if errors.Is(err, inventory.ErrNotFound) {
					// Vanished upstream equals inactive.
					snap = inventory.Snapshot{ProductID: id, Active: false}
				} else {
					r.Log.Warn().Err(err).Str("product_id", id).Msg("inventory snapshot fetch failed, keeping cart line as-is")
					return nil
				}
			}
			mu.Lock()
			snaps[id] = snap
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}

func priceDrifted(item session.CartItem, snap inventory.Snapshot) bool {
	if snap.Price <= 0 {
		return false
	}
	offer := snap.OfferPrice
	if offer == 0 {
		offer = snap.Price
	}
	return item.UnitPrice != snap.Price || item.OfferPrice != offer
}
