package reconcile

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-segar/internal/common"
	"github.com/noah-isme/backend-segar/internal/session"
)

// Handler exposes cart reconciliation over HTTP.
type Handler struct {
	Reconciler *Reconciler
	Store      *session.Store
	Log        zerolog.Logger
}

// Reconcile runs one reconciliation pass and persists the corrected session.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil || h.Reconciler == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "reconciler not configured", nil)
		return
	}
	sess, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.Reconciler.Reconcile(r.Context(), sess)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Store.Save(r.Context(), sess); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, result)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
	default:
		h.Log.Error().Err(err).Msg("reconcile handler failure")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
