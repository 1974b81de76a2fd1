package slot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-segar/internal/session"
)

func newHandler(t *testing.T, r *Resolver) (*Handler, *session.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := &session.Store{R: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	return &Handler{Resolver: r, Store: store, Log: zerolog.Nop()}, store
}

func selectRouter(h *Handler) http.Handler {
	mux := chi.NewRouter()
	mux.Post("/sessions/{id}/slots/select", h.Select)
	return mux
}

func TestSelectAcceptsRevisionZeroOnFreshSession(t *testing.T) {
	catalog := &stubCatalogSource{byDate: map[string][]DeliverySlot{
		"2025-06-02": {{ID: "morning", Name: "Morning", StartTime: "07:00", Capacity: 10, Available: true}},
	}}
	h, store := newHandler(t, newResolver(catalog, &stubRestrictionSource{}))

	sess, err := store.Create(context.Background(), "central")
	require.NoError(t, err)
	require.Equal(t, uint64(0), sess.Revision)

	body := `{"slotId":"morning","date":"2025-06-02","manual":true,"revision":0}`
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID+"/slots/select", strings.NewReader(body))
	rec := httptest.NewRecorder()
	selectRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	saved, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Equal(t, session.SlotStateSelected, saved.Slot.CurrentState())
	require.Equal(t, "morning", saved.Slot.SlotID)
}

func TestSelectRejectsStaleRevision(t *testing.T) {
	catalog := &stubCatalogSource{byDate: map[string][]DeliverySlot{
		"2025-06-02": {{ID: "morning", Name: "Morning", StartTime: "07:00", Capacity: 10, Available: true}},
	}}
	h, store := newHandler(t, newResolver(catalog, &stubRestrictionSource{}))

	sess, err := store.Create(context.Background(), "central")
	require.NoError(t, err)
	_, err = sess.AddItem(session.CartItem{ProductID: "p1", Quantity: 1, UnitPrice: 100})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), sess))

	body := `{"slotId":"morning","date":"2025-06-02","manual":true,"revision":0}`
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID+"/slots/select", strings.NewReader(body))
	rec := httptest.NewRecorder()
	selectRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}
