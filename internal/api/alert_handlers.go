package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/ts-shield/internal/alerts"
	"github.com/technosupport/ts-shield/internal/data"
)

type AlertHandler struct {
	Service *alerts.Service
}

func NewAlertHandler(svc *alerts.Service) *AlertHandler {
	return &AlertHandler{Service: svc}
}

// GET /api/v1/alerts?limit=50
func (h *AlertHandler) Active(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.Active(r.Context(), parseLimit(r, 50))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if items == nil {
		items = []data.Alert{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"alerts": items, "count": len(items)})
}

// POST /api/v1/alerts/{id}/acknowledge
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeActor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	err := h.Service.Acknowledge(r.Context(), id, req.ActorID)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"alert_id": id, "acknowledged": "true"})
	case errors.Is(err, alerts.ErrNotFound):
		respondError(w, http.StatusNotFound, "Alert not found or expired")
	case errors.Is(err, alerts.ErrAlreadyAcknowledged):
		respondError(w, http.StatusConflict, "Alert already acknowledged")
	default:
		respondStoreError(w, err)
	}
}
