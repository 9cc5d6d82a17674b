package live

import (
	"github.com/technosupport/ts-shield/internal/data"
)

// Egress message types pushed to UI subscribers.
const (
	MsgFrameAnalysis = "frame_analysis"
	MsgCriticalAlert = "critical_alert"
)

type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// FramePayload is the ingress shape from the inference collaborator and
// the egress shape of frame_analysis. Unknown fields are rejected at
// the boundary, never silently persisted.
type FramePayload struct {
	CameraID   string           `json:"camera_id"`
	FPS        float64          `json:"fps"`
	Detections []FrameDetection `json:"detections"`
}

type FrameDetection struct {
	ObjectClass data.ObjectClass `json:"object_class"`
	Confidence  float64          `json:"confidence"`
	ThreatLevel data.ThreatLevel `json:"threat_level"`
	BBox        *data.BBox       `json:"bbox,omitempty"`
	FrameID     int64            `json:"frame_id,omitempty"`
}
