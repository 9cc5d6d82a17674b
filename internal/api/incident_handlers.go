package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/ts-shield/internal/data"
	"github.com/technosupport/ts-shield/internal/escalate"
)

type IncidentHandler struct {
	Service *escalate.Service
}

func NewIncidentHandler(svc *escalate.Service) *IncidentHandler {
	return &IncidentHandler{Service: svc}
}

// GET /api/v1/incidents?status=open&limit=50
func (h *IncidentHandler) List(w http.ResponseWriter, r *http.Request) {
	status := data.IncidentStatus(r.URL.Query().Get("status"))
	limit := parseLimit(r, 50)

	items, err := h.Service.Incidents.List(r.Context(), status, limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if items == nil {
		items = []data.Incident{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"incidents": items, "count": len(items)})
}

// GET /api/v1/incidents/{id}
func (h *IncidentHandler) Get(w http.ResponseWriter, r *http.Request) {
	inc, err := h.Service.Incidents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, inc)
}

type actorRequest struct {
	ActorID string `json:"actor_id"`
	Notes   string `json:"notes"`
}

func decodeActor(w http.ResponseWriter, r *http.Request) (*actorRequest, bool) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return nil, false
	}
	if req.ActorID == "" {
		respondError(w, http.StatusBadRequest, "actor_id is required")
		return nil, false
	}
	return &req, true
}

// POST /api/v1/incidents/{id}/acknowledge
func (h *IncidentHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeActor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.Service.Acknowledge(r.Context(), id, req.ActorID); err != nil {
		respondTransitionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"incident_id": id,
		"status":      string(data.StatusInvestigating),
	})
}

// POST /api/v1/incidents/{id}/resolve
func (h *IncidentHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeActor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.Service.Resolve(r.Context(), id, req.ActorID, req.Notes); err != nil {
		respondTransitionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"incident_id": id,
		"status":      string(data.StatusResolved),
	})
}

// GET /api/v1/incidents/unsynced
//
// The central sync gateway polls this, exports the batch, then confirms
// each incident via mark-synced. The export itself happens outside this
// service.
func (h *IncidentHandler) Unsynced(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.Unsynced(r.Context(), parseLimit(r, 100))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if items == nil {
		items = []data.Incident{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"incidents": items, "count": len(items)})
}

// POST /api/v1/incidents/{id}/mark-synced
func (h *IncidentHandler) MarkSynced(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Service.MarkSynced(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"incident_id": id, "synced": "true"})
}

func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, data.ErrNotFound):
		respondError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, data.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "Store unavailable")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondTransitionError(w http.ResponseWriter, err error) {
	var invalid *escalate.InvalidTransitionError
	switch {
	case errors.Is(err, escalate.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invalid):
		respondError(w, http.StatusConflict, invalid.Error())
	default:
		respondStoreError(w, err)
	}
}

func parseLimit(r *http.Request, def int64) int64 {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
