package promo

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-segar/internal/common"
	"github.com/noah-isme/backend-segar/internal/pricing"
	"github.com/noah-isme/backend-segar/internal/session"
)

// Handler wires promo application and removal to HTTP.
type Handler struct {
	Service *Service
	Store   *session.Store
	Log     zerolog.Logger
}

type applyPayload struct {
	Code string `json:"code" validate:"required"`
}

// Apply validates and records a promo code on the session.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload applyPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	subtotal := pricing.Compute(pricing.Inputs{Items: sess.Items}).Subtotal
	applied, err := h.Service.Apply(r.Context(), sess, payload.Code, subtotal)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Store.Save(r.Context(), sess); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"promo": applied, "revision": sess.Revision})
}

// Remove clears the active promo code and restores pre-promo pricing.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	h.Service.Remove(r.Context(), sess)
	if err := h.Store.Save(r.Context(), sess); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"promo": nil, "revision": sess.Revision})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	if h.Store == nil || h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo service not configured", nil)
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
	case errors.Is(err, ErrAlreadyApplied):
		common.JSONError(w, http.StatusConflict, "PROMO_ALREADY_APPLIED", err.Error(), nil)
	case errors.Is(err, ErrExpired):
		common.JSONError(w, http.StatusUnprocessableEntity, "PROMO_EXPIRED", err.Error(), nil)
	case errors.Is(err, ErrMinOrderNotMet):
		common.JSONError(w, http.StatusUnprocessableEntity, "PROMO_MIN_ORDER", err.Error(), nil)
	case errors.Is(err, ErrInvalid):
		common.JSONError(w, http.StatusUnprocessableEntity, "PROMO_INVALID", err.Error(), nil)
	case errors.Is(err, ErrUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "PROMO_UNAVAILABLE", err.Error(), nil)
	default:
		h.Log.Error().Err(err).Msg("promo handler failure")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
