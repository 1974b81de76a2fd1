package session

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-segar/internal/common"
)

// Handler wires session and cart-line operations to HTTP.
type Handler struct {
	Store *Store
	Log   zerolog.Logger
}

type createPayload struct {
	Area string `json:"area"`
}

// Create starts a new checkout session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session store not configured", nil)
		return
	}
	var payload createPayload
	if err := common.DecodeJSON(r, &payload); err != nil && !errors.Is(err, common.ErrEmptyBody) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	sess, err := h.Store.Create(r.Context(), payload.Area)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, sess)
}

// Get returns the full session.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	common.JSONData(w, http.StatusOK, sess)
}

type addItemPayload struct {
	ProductID        string         `json:"productId" validate:"required"`
	Name             string         `json:"name"`
	Quantity         int            `json:"quantity" validate:"gt=0"`
	UnitPrice        int64          `json:"unitPrice" validate:"gte=0"`
	OfferPrice       int64          `json:"offerPrice" validate:"gte=0"`
	Weight           float64        `json:"weight"`
	Unit             string         `json:"unit"`
	MaxOrderQuantity int            `json:"maxOrderQuantity"`
	Customization    *Customization `json:"customization"`
}

// AddItem appends or increments a cart line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload addItemPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	item, err := sess.AddItem(CartItem{
		ProductID:        payload.ProductID,
		Name:             payload.Name,
		Quantity:         payload.Quantity,
		UnitPrice:        payload.UnitPrice,
		OfferPrice:       payload.OfferPrice,
		Weight:           payload.Weight,
		Unit:             payload.Unit,
		MaxOrderQuantity: payload.MaxOrderQuantity,
		Customization:    payload.Customization,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Store.Save(r.Context(), sess); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"item": item, "revision": sess.Revision})
}

type updateItemPayload struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

// UpdateItem changes the quantity of a cart line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload updateItemPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	item, err := sess.UpdateQuantity(chi.URLParam(r, "cartKey"), payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Store.Save(r.Context(), sess); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"item": item, "revision": sess.Revision})
}

// RemoveItem deletes a cart line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := sess.RemoveItem(chi.URLParam(r, "cartKey")); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Store.Save(r.Context(), sess); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"items": sess.Items, "revision": sess.Revision})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session store not configured", nil)
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
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
	case errors.Is(err, ErrItemNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart item not found", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		h.Log.Error().Err(err).Msg("session handler failure")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
