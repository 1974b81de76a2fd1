// Package session models the explicit checkout session threaded through the
// slot resolver, cart reconciler and pricing engine. The session replaces the
// ambient client-held state the storefront used to rely on: everything a
// resolution needs (cart lines, slot selection, applied promo, delivery area)
// travels in one object.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested session could not be located.
var ErrNotFound = errors.New("session not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrItemNotFound indicates the cart line does not exist in the session.
var ErrItemNotFound = errors.New("cart item not found")

// Customization captures a per-line customization and its charge in minor units.
type Customization struct {
	Note   string `json:"note"`
	Charge int64  `json:"charge"`
}

// CartItem is one cart line. CartKey is the cart-local identity so the same
// product can appear on several lines with different customizations.
type CartItem struct {
	CartKey          string         `json:"cartKey"`
	ProductID        string         `json:"productId"`
	Name             string         `json:"name"`
	Quantity         int            `json:"quantity"`
	UnitPrice        int64          `json:"unitPrice"`
	OfferPrice       int64          `json:"offerPrice"`
	Weight           float64        `json:"weight"`
	Unit             string         `json:"unit"`
	MaxOrderQuantity int            `json:"maxOrderQuantity"`
	Customization    *Customization `json:"customization,omitempty"`
}

// Slot selection states.
const (
	SlotStateNone     = "no_slot_selected"
	SlotStateSelected = "slot_selected"
	SlotStateConflict = "slot_conflict"
)

// SlotSelection is the per-session slot state machine. Token records the
// session revision the selection was applied under so stale resolver results
// can be discarded.
type SlotSelection struct {
	State    string `json:"state"`
	Date     string `json:"date,omitempty"`
	SlotID   string `json:"slotId,omitempty"`
	SlotName string `json:"slotName,omitempty"`
	Manual   bool   `json:"manual,omitempty"`
	Token    uint64 `json:"token,omitempty"`
}

// CurrentState normalises the zero value to SlotStateNone.
func (s SlotSelection) CurrentState() string {
	if s.State == "" {
		return SlotStateNone
	}
	return s.State
}

// Apply adopts a slot and re-enters the selected state.
func (s *SlotSelection) Apply(slotID, slotName, date string, manual bool, token uint64) {
	s.State = SlotStateSelected
	s.SlotID = slotID
	s.SlotName = slotName
	s.Date = date
	s.Manual = manual
	s.Token = token
}

// MarkConflict transitions a selected slot into the conflict state. Only a
// selected slot can conflict; the zero and conflict states are unchanged.
func (s *SlotSelection) MarkConflict() {
	if s.CurrentState() == SlotStateSelected {
		s.State = SlotStateConflict
	}
}

// ResolveConflict re-enters the selected state after the user removed the
// conflicting items, keeping the current slot.
func (s *SlotSelection) ResolveConflict() {
	if s.CurrentState() == SlotStateConflict {
		s.State = SlotStateSelected
	}
}

// Clear resets the selection entirely.
func (s *SlotSelection) Clear() {
	*s = SlotSelection{State: SlotStateNone}
}

// AppliedPromo is the session-scoped promo state.
type AppliedPromo struct {
	Code           string `json:"code"`
	DiscountAmount int64  `json:"discountAmount"`
}

// Session is the checkout session.
type Session struct {
	ID        string        `json:"id"`
	Area      string        `json:"area"`
	Revision  uint64        `json:"revision"`
	Items     []CartItem    `json:"items"`
	Slot      SlotSelection `json:"slot"`
	Promo     *AppliedPromo `json:"promo,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// New constructs an empty session for the delivery area.
func New(area string, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Area:      strings.TrimSpace(area),
		Slot:      SlotSelection{State: SlotStateNone},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ProductIDs returns the distinct product identifiers in cart order.
func (s *Session) ProductIDs() []string {
	seen := make(map[string]struct{}, len(s.Items))
	ids := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}

// Bump advances the session revision. Every cart-composition or date change
// calls it so in-flight slot resolutions for the prior state are discarded.
func (s *Session) Bump() uint64 {
	s.Revision++
	return s.Revision
}

// AddItem inserts a cart line or increments an identical one. Lines match
// when both product and customization note are equal.
func (s *Session) AddItem(item CartItem) (CartItem, error) {
	if item.ProductID == "" {
		return CartItem{}, fmt.Errorf("productId is required: %w", ErrInvalidInput)
	}
	if item.Quantity <= 0 {
		return CartItem{}, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	if item.UnitPrice < 0 || item.OfferPrice < 0 {
		return CartItem{}, fmt.Errorf("prices must not be negative: %w", ErrInvalidInput)
	}
	if item.OfferPrice == 0 {
		item.OfferPrice = item.UnitPrice
	}
	for i := range s.Items {
		existing := &s.Items[i]
		if existing.ProductID != item.ProductID || !sameCustomization(existing.Customization, item.Customization) {
			continue
		}
		next := existing.Quantity + item.Quantity
		if existing.MaxOrderQuantity > 0 && next > existing.MaxOrderQuantity {
			return CartItem{}, fmt.Errorf("quantity exceeds max order quantity %d: %w", existing.MaxOrderQuantity, ErrInvalidInput)
		}
		existing.Quantity = next
		s.Bump()
		return *existing, nil
	}
	if item.MaxOrderQuantity > 0 && item.Quantity > item.MaxOrderQuantity {
		return CartItem{}, fmt.Errorf("quantity exceeds max order quantity %d: %w", item.MaxOrderQuantity, ErrInvalidInput)
	}
	if item.CartKey == "" {
		item.CartKey = uuid.NewString()
	}
	s.Items = append(s.Items, item)
	s.Bump()
	return item, nil
}

// UpdateQuantity sets the quantity for a cart line.
func (s *Session) UpdateQuantity(cartKey string, qty int) (CartItem, error) {
	if qty <= 0 {
		return CartItem{}, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	for i := range s.Items {
		if s.Items[i].CartKey != cartKey {
			continue
		}
		if max := s.Items[i].MaxOrderQuantity; max > 0 && qty > max {
			return CartItem{}, fmt.Errorf("quantity exceeds max order quantity %d: %w", max, ErrInvalidInput)
		}
		s.Items[i].Quantity = qty
		s.Bump()
		return s.Items[i], nil
	}
	return CartItem{}, ErrItemNotFound
}

// RemoveItem deletes a cart line by its cart key.
func (s *Session) RemoveItem(cartKey string) error {
	for i := range s.Items {
		if s.Items[i].CartKey != cartKey {
			continue
		}
		s.Items = append(s.Items[:i], s.Items[i+1:]...)
		s.Bump()
		return nil
	}
	return ErrItemNotFound
}

// ReplaceItems swaps the cart contents wholesale, used when the caller accepts
// a reconciliation result.
func (s *Session) ReplaceItems(items []CartItem) {
	s.Items = items
	s.Bump()
}

func sameCustomization(a, b *Customization) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Note == b.Note && a.Charge == b.Charge
}
