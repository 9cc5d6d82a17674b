package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/technosupport/ts-shield/internal/data"
	"github.com/technosupport/ts-shield/internal/ingest"
	"github.com/technosupport/ts-shield/internal/pipeline"
)

type DetectionHandler struct {
	Pipeline *pipeline.Service
}

func NewDetectionHandler(p *pipeline.Service) *DetectionHandler {
	return &DetectionHandler{Pipeline: p}
}

// POST /api/v1/detections
//
// Ingress is fire-and-forget from the sender's side: a store outage is
// logged and the detection dropped, but the sender still gets 202.
// Retrying from the camera would just replay the backlog into a store
// that is already struggling.
func (h *DetectionHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CameraID    string     `json:"camera_id"`
		ObjectClass string     `json:"object_class"`
		Confidence  float64    `json:"confidence"`
		ThreatLevel string     `json:"threat_level"`
		BBox        *data.BBox `json:"bbox"`
		FrameID     int64      `json:"frame_id"`
		Timestamp   time.Time  `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	d, err := h.Pipeline.Process(r.Context(), ingest.Input{
		CameraID:    req.CameraID,
		ObjectClass: data.ObjectClass(req.ObjectClass),
		Confidence:  req.Confidence,
		ThreatLevel: data.ThreatLevel(req.ThreatLevel),
		BBox:        req.BBox,
		FrameID:     req.FrameID,
		Timestamp:   req.Timestamp,
	})
	if err != nil {
		var ve *ingest.ValidationError
		switch {
		case errors.As(err, &ve):
			respondError(w, http.StatusBadRequest, ve.Error())
		case errors.Is(err, data.ErrUnavailable):
			respondJSON(w, http.StatusAccepted, map[string]string{"status": "dropped"})
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":       "accepted",
		"detection_id": d.DetectionID,
	})
}
