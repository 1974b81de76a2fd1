package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-segar/internal/dateutil"
	"github.com/noah-isme/backend-segar/internal/inventory"
	"github.com/noah-isme/backend-segar/internal/session"
	"github.com/noah-isme/backend-segar/internal/slot"
)

type stubInventory struct {
	snaps map[string]inventory.Snapshot
	errs  map[string]error
}

func (s *stubInventory) Product(_ context.Context, id string) (inventory.Snapshot, error) {
	if err, ok := s.errs[id]; ok {
		return inventory.Snapshot{}, err
	}
	snap, ok := s.snaps[id]
	if !ok {
		return inventory.Snapshot{}, inventory.ErrNotFound
	}
	return snap, nil
}

func newReconciler(inv inventory.Source) *Reconciler {
	return &Reconciler{Inventory: inv, Log: zerolog.Nop()}
}

func cartWith(t *testing.T, items ...session.CartItem) *session.Session {
	t.Helper()
	sess := session.New("", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	for _, it := range items {
		if _, err := sess.AddItem(it); err != nil {
			t.Fatalf("seed cart: %v", err)
		}
	}
	return sess
}

func TestReconcileRemovesInactive(t *testing.T) {
	inv := &stubInventory{snaps: map[string]inventory.Snapshot{
		"p1": {ProductID: "p1", Active: false, Stock: 10, Price: 1000},
	}}
	sess := cartWith(t, session.CartItem{ProductID: "p1", Name: "Milk", Quantity: 2, UnitPrice: 1000})

	res, err := newReconciler(inv).Reconcile(context.Background(), sess)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(res.Items) != 0 {
		t.Fatalf("inactive product must be removed, got %v", res.Items)
	}
	if len(res.Issues) != 1 || res.Issues[0].Reason != ReasonInactive {
		t.Fatalf("unexpected issues %v", res.Issues)
	}
}

func TestReconcileRemovesOutOfStock(t *testing.T) {
	inv := &stubInventory{snaps: map[string]inventory.Snapshot{
		"p1": {ProductID: "p1", Active: true, Stock: 0, Price: 1000},
	}}
	sess := cartWith(t, session.CartItem{ProductID: "p1", Name: "Milk", Quantity: 2, UnitPrice: 1000})

	res, err := newReconciler(inv).Reconcile(context.Background(), sess)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(res.Items) != 0 || res.Issues[0].Reason != ReasonOutOfStock {
		t.Fatalf("out of stock product must be removed, got items=%v issues=%v", res.Items, res.Issues)
	}
}

func TestReconcileClampsQuantityNeverToZero(t *testing.T) {
	inv := &stubInventory{snaps: map[string]inventory.Snapshot{
		"p1": {ProductID: "p1", Active: true, Stock: 1, Price: 1000},
	}}
	sess := cartWith(t, session.CartItem{ProductID: "p1", Name: "Milk", Quantity: 5, UnitPrice: 1000})

	res, err := newReconciler(inv).Reconcile(context.Background(), sess)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Quantity != 1 {
		t.Fatalf("expected quantity clamped to 1, got %v", res.Items)
	}
	issue := res.Issues[0]
	if issue.Reason != ReasonQuantityAdjusted || issue.OldQuantity != 5 || issue.NewQuantity != 1 {
		t.Fatalf("unexpected issue %+v", issue)
	}
}

func TestReconcileHonorsMaxOrderQuantity(t *testing.T) {
	inv := &stubInventory{snaps: map[string]inventory.Snapshot{
		"p1": {ProductID: "p1", Active: true, Stock: 50, MaxOrderQuantity: 3, Price: 1000},
	}}
	sess := cartWith(t, session.CartItem{ProductID: "p1", Name: "Milk", Quantity: 10, UnitPrice: 1000})

	res, err := newReconciler(inv).Reconcile(context.Background(), sess)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Items[0].Quantity != 3 {
		t.Fatalf("expected clamp to max order quantity 3, got %d", res.Items[0].Quantity)
	}
}

func TestReconcileUpdatesDriftedPrices(t *testing.T) {
	inv := &stubInventory{snaps: map[string]inventory.Snapshot{
		"p1": {ProductID: "p1", Active: true, Stock: 10, Price: 1200, OfferPrice: 1100},
	}}
	sess := cartWith(t, session.CartItem{ProductID: "p1", Name: "Milk", Quantity: 1, UnitPrice: 1000})

	res, err := newReconciler(inv).Reconcile(context.Background(), sess)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	item := res.Items[0]
	if item.UnitPrice != 1200 || item.OfferPrice != 1100 {
		t.Fatalf("expected refreshed prices, got %d/%d", item.UnitPrice, item.OfferPrice)
	}
	if res.Issues[0].Reason != ReasonPriceChanged {
		t.Fatalf("unexpected issue %v", res.Issues)
	}
}

func TestReconcileVanishedProductTreatedInactive(t *testing.T) {
	inv := &stubInventory{snaps: map[string]inventory.Snapshot{}}
	sess := cartWith(t, session.CartItem{ProductID: "ghost", Name: "Ghost", Quantity: 1, UnitPrice: 100})

	res, err := newReconciler(inv).Reconcile(context.Background(), sess)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(res.Items) != 0 || res.Issues[0].Reason != ReasonInactive {
		t.Fatalf("vanished product must be removed, got %v", res.Issues)
	}
}

func TestReconcileKeepsLineOnFetchOutage(t *testing.T) {
	inv := &stubInventory{errs: map[string]error{"p1": errors.New("upstream down")}}
	sess := cartWith(t, session.CartItem{ProductID: "p1", Name: "Milk", Quantity: 2, UnitPrice: 1000})

	res, err := newReconciler(inv).Reconcile(context.Background(), sess)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(res.Items) != 1 || len(res.Issues) != 0 {
		t.Fatalf("an outage must not shrink the cart, got items=%v issues=%v", res.Items, res.Issues)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	inv := &stubInventory{snaps: map[string]inventory.Snapshot{
		"p1": {ProductID: "p1", Active: true, Stock: 2, Price: 1000, OfferPrice: 1000},
		"p2": {ProductID: "p2", Active: false},
	}}
	sess := cartWith(t,
		session.CartItem{ProductID: "p1", Name: "Milk", Quantity: 5, UnitPrice: 1000},
		session.CartItem{ProductID: "p2", Name: "Bread", Quantity: 1, UnitPrice: 500},
	)

	r := newReconciler(inv)
	first, err := r.Reconcile(context.Background(), sess)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if len(first.Issues) != 2 {
		t.Fatalf("expected two issues on the first pass, got %v", first.Issues)
	}
	rev := sess.Revision

	second, err := r.Reconcile(context.Background(), sess)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(second.Issues) != 0 {
		t.Fatalf("a repeat pass against unchanged truth must report nothing, got %v", second.Issues)
	}
	if sess.Revision != rev {
		t.Fatal("a no-op pass must not bump the revision")
	}
}

type stubSlots struct {
	slots []slot.DeliverySlot
}

func (s *stubSlots) SlotAvailability(_ context.Context, _ string) ([]slot.DeliverySlot, error) {
	return s.slots, nil
}

type stubRestrictions struct {
	blocked map[string][]string
}

func (s *stubRestrictions) SlotRestrictions(_ context.Context, productID string, _ time.Weekday) ([]string, error) {
	return s.blocked[productID], nil
}

func TestReconcileAttributesSlotConflictToLines(t *testing.T) {
	inv := &stubInventory{snaps: map[string]inventory.Snapshot{
		"frozen-1": {ProductID: "frozen-1", Active: true, Stock: 10, Price: 1000, OfferPrice: 1000},
		"milk-2":   {ProductID: "milk-2", Active: true, Stock: 10, Price: 500, OfferPrice: 500},
	}}
	resolver := &slot.Resolver{
		Catalog: &slot.Catalog{
			Source: &stubSlots{slots: []slot.DeliverySlot{
				{ID: "noon", Name: "Noon", Date: "2025-06-02", StartTime: "12:00", Capacity: 10, Available: true},
			}},
			Log: zerolog.Nop(),
		},
		Restrictions: &slot.Restrictions{
			Source: &stubRestrictions{blocked: map[string][]string{"frozen-1": {"Noon"}}},
			Log:    zerolog.Nop(),
		},
		Cal: dateutil.NewCalendar("UTC", func() time.Time {
			return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
		}),
		Log: zerolog.Nop(),
	}

	sess := cartWith(t, session.CartItem{ProductID: "milk-2", Name: "Milk", Quantity: 1, UnitPrice: 500, OfferPrice: 500})
	if _, err := resolver.ValidateAndSetSlot(context.Background(), sess, "noon", "2025-06-02", true, sess.Revision); err != nil {
		t.Fatalf("select: %v", err)
	}
	frozen, err := sess.AddItem(session.CartItem{ProductID: "frozen-1", Name: "Ice Cream", Quantity: 1, UnitPrice: 1000, OfferPrice: 1000})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	r := &Reconciler{Inventory: inv, Resolver: resolver, Log: zerolog.Nop()}
	res, err := r.Reconcile(context.Background(), sess)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(res.Issues) != 1 {
		t.Fatalf("expected one slot issue, got %v", res.Issues)
	}
	issue := res.Issues[0]
	if issue.Reason != ReasonSlotUnavailable || issue.CartKey != frozen.CartKey || issue.ProductID != "frozen-1" {
		t.Fatalf("slot conflict must name the offending cart line, got %+v", issue)
	}
	if len(res.Items) != 2 {
		t.Fatalf("a slot conflict must not remove lines, got %v", res.Items)
	}
	if res.SlotState != session.SlotStateConflict {
		t.Fatalf("expected conflict state, got %s", res.SlotState)
	}
}
