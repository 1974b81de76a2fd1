package pricing

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-segar/internal/common"
	"github.com/noah-isme/backend-segar/internal/config"
	"github.com/noah-isme/backend-segar/internal/session"
)

// Handler prices a session's cart over HTTP.
type Handler struct {
	Store *session.Store
	Cfg   *config.Config
	Log   zerolog.Logger
}

type pricePayload struct {
	Tip int64 `json:"tip" validate:"gte=0"`
}

// Price computes the full breakdown for the session's current cart, promo
// and delivery area. The body is optional; an absent body means no tip.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil || h.Cfg == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing not configured", nil)
		return
	}
	sess, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	var payload pricePayload
	if err := common.DecodeJSON(r, &payload); err != nil && !errors.Is(err, common.ErrEmptyBody) {
		h.writeError(w, err)
		return
	}

	area := sess.Area
	if area == "" {
		area = h.Cfg.DefaultArea
	}
	tariff, _ := h.Cfg.AreaConfig(area)

	var discount int64
	if sess.Promo != nil {
		discount = sess.Promo.DiscountAmount
	}
	breakdown := Compute(Inputs{
		Items:    sess.Items,
		Area:     tariff,
		Discount: discount,
		Tip:      payload.Tip,
		TipMax:   h.Cfg.TipMax,
		TaxBPS:   h.Cfg.TaxRateBPS,
	})
	common.JSONData(w, http.StatusOK, map[string]any{
		"currency":  h.Cfg.CurrencyCode,
		"area":      area,
		"breakdown": breakdown,
		"revision":  sess.Revision,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if appErr, ok := common.AsAppError(err); ok {
		common.JSONError(w, appErr.Status(http.StatusBadRequest), appErr.Code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, session.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
	default:
		h.Log.Error().Err(err).Msg("pricing handler failure")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
