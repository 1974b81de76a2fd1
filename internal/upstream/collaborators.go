package upstream

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/noah-isme/backend-segar/internal/inventory"
	"github.com/noah-isme/backend-segar/internal/promo"
	"github.com/noah-isme/backend-segar/internal/slot"
)

// SlotClient serves the slot availability contract.
type SlotClient struct {
	Client
}

type slotListResponse struct {
	Slots []slot.DeliverySlot `json:"slots"`
}

// SlotAvailability fetches the raw slot snapshot for a date.
func (c SlotClient) SlotAvailability(ctx context.Context, date string) ([]slot.DeliverySlot, error) {
	var resp slotListResponse
	q := url.Values{"date": {date}}
	if err := c.getJSON(ctx, "/slots", q, &resp); err != nil {
		return nil, err
	}
	return resp.Slots, nil
}

// RestrictionClient serves the product slot restriction contract.
type RestrictionClient struct {
	Client
}

type restrictionResponse struct {
	UnavailableSlotNames []string `json:"unavailableSlotNames"`
}

// SlotRestrictions fetches the blocked slot names for a product on a weekday.
// A product without restrictions answers 404 upstream; that is an empty list,
// not an error.
func (c RestrictionClient) SlotRestrictions(ctx context.Context, productID string, day time.Weekday) ([]string, error) {
	var resp restrictionResponse
	q := url.Values{"day": {strings.ToLower(day.String())}}
	if err := c.getJSON(ctx, "/products/"+url.PathEscape(productID)+"/slot-restrictions", q, &resp); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return resp.UnavailableSlotNames, nil
}

// InventoryClient serves the inventory snapshot contract.
type InventoryClient struct {
	Client
}

// Product fetches the live snapshot for a product.
func (c InventoryClient) Product(ctx context.Context, productID string) (inventory.Snapshot, error) {
	var snap inventory.Snapshot
	if err := c.getJSON(ctx, "/products/"+url.PathEscape(productID), nil, &snap); err != nil {
		if isNotFound(err) {
			return inventory.Snapshot{}, inventory.ErrNotFound
		}
		return inventory.Snapshot{}, err
	}
	if snap.ProductID == "" {
		snap.ProductID = productID
	}
	return snap, nil
}

// PromoClient serves the promo code contract.
type PromoClient struct {
	Client
}

type promoValidateRequest struct {
	Code       string   `json:"code"`
	SessionID  string   `json:"sessionId"`
	Subtotal   int64    `json:"subtotal"`
	ProductIDs []string `json:"productIds"`
}

// Validate asks the promo backend for a verdict on a code. An unknown code
// answers 404 upstream; that is an invalid-code verdict, not an error.
func (c PromoClient) Validate(ctx context.Context, code, sessionID string, subtotal int64, productIDs []string) (promo.Validation, error) {
	var verdict promo.Validation
	req := promoValidateRequest{Code: code, SessionID: sessionID, Subtotal: subtotal, ProductIDs: productIDs}
	if err := c.postJSON(ctx, "/promos/validate", req, &verdict); err != nil {
		if isNotFound(err) {
			return promo.Validation{Valid: false, Reason: "unknown_code"}, nil
		}
		return promo.Validation{}, err
	}
	return verdict, nil
}

// Release tells the promo backend a code is no longer held by a session.
func (c PromoClient) Release(ctx context.Context, code, sessionID string) error {
	err := c.delete(ctx, "/promos/"+url.PathEscape(code)+"/sessions/"+url.PathEscape(sessionID))
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
