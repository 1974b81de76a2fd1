package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-segar/internal/inventory"
	"github.com/noah-isme/backend-segar/internal/resilience"
)

func newClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return Client{
		BaseURL: srv.URL,
		HTTP:    resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 2, BaseBackoff: time.Millisecond},
	}
}

func TestSlotAvailability(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/slots", r.URL.Path)
		require.Equal(t, "2025-06-02", r.URL.Query().Get("date"))
		_ = json.NewEncoder(w).Encode(map[string]any{"slots": []map[string]any{
			{"id": "s1", "name": "Morning", "startTime": "07:00", "capacity": 10, "isAvailable": true},
		}})
	})
	slots, err := SlotClient{client}.SlotAvailability(context.Background(), "2025-06-02")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.Equal(t, "Morning", slots[0].Name)
	require.True(t, slots[0].Available)
}

func TestSlotRestrictionsNotFoundMeansUnrestricted(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	names, err := RestrictionClient{client}.SlotRestrictions(context.Background(), "p1", time.Monday)
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestSlotRestrictionsPassesWeekday(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products/frozen-1/slot-restrictions", r.URL.Path)
		require.Equal(t, "monday", r.URL.Query().Get("day"))
		_ = json.NewEncoder(w).Encode(map[string]any{"unavailableSlotNames": []string{"Noon"}})
	})
	names, err := RestrictionClient{client}.SlotRestrictions(context.Background(), "frozen-1", time.Monday)
	require.NoError(t, err)
	require.Equal(t, []string{"Noon"}, names)
}

func TestInventoryProduct(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products/p1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"active": true, "stock": 4, "price": 1200})
	})
	snap, err := InventoryClient{client}.Product(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "p1", snap.ProductID, "missing productId must be filled from the request")
	require.Equal(t, 4, snap.Stock)
}

func TestInventoryProductNotFound(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := InventoryClient{client}.Product(context.Background(), "ghost")
	require.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestPromoValidateUnknownCodeIsVerdictNotError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	verdict, err := PromoClient{client}.Validate(context.Background(), "NOPE", "sess", 1000, nil)
	require.NoError(t, err)
	require.False(t, verdict.Valid)
}

func TestPromoValidateSendsCartContext(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req promoValidateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "SAVE10", req.Code)
		require.Equal(t, int64(50000), req.Subtotal)
		_ = json.NewEncoder(w).Encode(map[string]any{"valid": true, "discountAmount": 5000})
	})
	verdict, err := PromoClient{client}.Validate(context.Background(), "SAVE10", "sess", 50000, []string{"p1"})
	require.NoError(t, err)
	require.True(t, verdict.Valid)
	require.Equal(t, int64(5000), verdict.DiscountAmount)
}

func TestServerErrorRetriesThenFails(t *testing.T) {
	calls := 0
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := SlotClient{client}.SlotAvailability(context.Background(), "2025-06-02")
	require.Error(t, err)
	require.Equal(t, 2, calls, "5xx must be retried by the resilient transport")
}

func TestPromoReleaseIgnoresNotFound(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		http.NotFound(w, r)
	})
	require.NoError(t, PromoClient{client}.Release(context.Background(), "SAVE10", "sess"))
}
