package slot

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-segar/internal/common"
	"github.com/noah-isme/backend-segar/internal/session"
)

// Handler wires slot listing and selection to HTTP.
type Handler struct {
	Resolver *Resolver
	Store    *session.Store
	Log      zerolog.Logger
}

// List returns the raw slot snapshot for a date. A catalog outage answers
// with an empty list and a warning flag instead of an error page.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.Resolver.Cal.Today()
	}
	ctx, cancel := WithDeadline(r.Context())
	defer cancel()
	slots, err := h.Resolver.Catalog.ListSlots(ctx, date)
	if err != nil {
		common.JSONData(w, http.StatusOK, map[string]any{"date": date, "slots": []DeliverySlot{}, "degraded": true})
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"date": date, "slots": slots})
}

type eligiblePayload struct {
	Date string `json:"date"`
}

// Eligible returns the slots the whole cart may use on a date. The body is
// optional; an absent date means today in the reference timezone.
func (h *Handler) Eligible(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload eligiblePayload
	if err := common.DecodeJSON(r, &payload); err != nil && !errors.Is(err, common.ErrEmptyBody) {
		h.writeError(w, err)
		return
	}
	date := payload.Date
	if date == "" {
		date = h.Resolver.Cal.Today()
	}
	ctx, cancel := WithDeadline(r.Context())
	defer cancel()
	eligible, err := h.Resolver.ComputeEligibleSlots(ctx, date, sess.ProductIDs())
	if err != nil {
		common.JSONData(w, http.StatusOK, map[string]any{"date": date, "slots": []DeliverySlot{}, "degraded": true})
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"date": date, "slots": eligible})
}

type nextPayload struct {
	From string `json:"from"`
}

// Next finds the earliest slot in the horizon the whole cart is eligible for.
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload nextPayload
	if err := common.DecodeJSON(r, &payload); err != nil && !errors.Is(err, common.ErrEmptyBody) {
		h.writeError(w, err)
		return
	}
	ctx, cancel := WithDeadline(r.Context())
	defer cancel()
	next, err := h.Resolver.FindNextAvailableSlot(ctx, sess.ProductIDs(), payload.From)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, next)
}

type selectPayload struct {
	SlotID   string `json:"slotId"`
	Date     string `json:"date"`
	Manual   bool   `json:"manual"`
	Revision uint64 `json:"revision"`
}

// Select applies a slot to the session. Manual selections require slotId and
// date; automatic ones search the horizon. The payload carries the cart
// revision the client resolved against so stale requests are rejected.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload selectPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	if payload.Manual && (payload.SlotID == "" || payload.Date == "") {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "manual selection requires slotId and date", nil)
		return
	}
	ctx, cancel := WithDeadline(r.Context())
	defer cancel()
	res, err := h.Resolver.ValidateAndSetSlot(ctx, sess, payload.SlotID, payload.Date, payload.Manual, payload.Revision)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Store.Save(r.Context(), sess); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"resolution": res, "selection": sess.Slot})
}

// ClearSelection drops the session's slot selection.
func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	sess.Slot.Clear()
	if err := h.Store.Save(r.Context(), sess); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"selection": sess.Slot})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	if h.Store == nil || h.Resolver == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "slot service not configured", nil)
		return nil, false
	}
	sess, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if appErr, ok := common.AsAppError(err); ok {
		common.JSONError(w, appErr.Status(http.StatusBadRequest), appErr.Code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, session.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
	case errors.Is(err, ErrSuperseded):
		common.JSONError(w, http.StatusConflict, "SUPERSEDED", "cart changed while resolving, retry with the current revision", nil)
	case errors.Is(err, ErrNoSlotAvailable):
		common.JSONError(w, http.StatusUnprocessableEntity, "NO_SLOT_AVAILABLE", err.Error(), nil)
	default:
		h.Log.Error().Err(err).Msg("slot handler failure")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
