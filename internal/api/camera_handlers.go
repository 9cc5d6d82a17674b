package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/ts-shield/internal/cameras"
	"github.com/technosupport/ts-shield/internal/data"
	"github.com/technosupport/ts-shield/internal/live"
)

type CameraHandler struct {
	Service *cameras.Service
	Frames  *live.FrameCache // nil when the live layer is disabled
}

func NewCameraHandler(svc *cameras.Service, frames *live.FrameCache) *CameraHandler {
	return &CameraHandler{Service: svc, Frames: frames}
}

// POST /api/v1/cameras
func (h *CameraHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CameraID string           `json:"camera_id"`
		Name     string           `json:"name"`
		Zone     string           `json:"zone"`
		Position data.GeoPosition `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.CameraID == "" {
		respondError(w, http.StatusBadRequest, "camera_id is required")
		return
	}

	c := &data.Camera{
		CameraID: req.CameraID,
		Name:     req.Name,
		Zone:     req.Zone,
		Position: req.Position,
	}
	if err := h.Service.Register(r.Context(), c); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"camera_id": req.CameraID})
}

// GET /api/v1/cameras
func (h *CameraHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.All(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if items == nil {
		items = []data.Camera{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"cameras": items, "count": len(items)})
}

// GET /api/v1/cameras/{id}
func (h *CameraHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// POST /api/v1/cameras/{id}/heartbeat
func (h *CameraHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var health data.CameraHealth
	if err := json.NewDecoder(r.Body).Decode(&health); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	err := h.Service.Heartbeat(r.Context(), chi.URLParam(r, "id"), health)
	if errors.Is(err, cameras.ErrUnknownCamera) {
		respondError(w, http.StatusNotFound, "Camera not registered")
		return
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(data.CameraLive)})
}

// GET /api/v1/cameras/{id}/frames/latest
//
// Serves polling UIs the same payload the websocket hub pushed. 204
// when no frame is fresh: an empty body is more honest than a stale
// frame.
func (h *CameraHandler) LatestFrame(w http.ResponseWriter, r *http.Request) {
	if h.Frames == nil {
		respondError(w, http.StatusNotFound, "Live frames not enabled")
		return
	}
	p, err := h.Frames.Latest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "Frame cache unavailable")
		return
	}
	if p == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
