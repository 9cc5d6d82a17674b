package ingest

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/technosupport/ts-shield/internal/data"
)

type DetectionRepo interface {
	Insert(ctx context.Context, d *data.Detection) error
}

type CounterRepo interface {
	IncrementCounters(ctx context.Context, cameraID string, class data.ObjectClass, threat data.ThreatLevel) error
}

// OpLog is the unified operational log. Optional; nil disables it.
type OpLog interface {
	Insert(ctx context.Context, e *data.LogEntry) error
}

// Input is the validated ingress payload. The strict JSON parse at the
// transport boundary happens before this type is built.
type Input struct {
	CameraID    string
	ObjectClass data.ObjectClass
	Confidence  float64
	ThreatLevel data.ThreatLevel
	BBox        *data.BBox
	FrameID     int64
	Timestamp   time.Time // zero means arrival time
}

type Service struct {
	Detections DetectionRepo
	Counters   CounterRepo
	Logs       OpLog

	// Timeout bounds each ingest against the store. A timed-out ingest
	// is logged and dropped; retrying would build unbounded backlog
	// under store unavailability.
	Timeout time.Duration
}

func NewService(detections DetectionRepo, counters CounterRepo, logs OpLog, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{Detections: detections, Counters: counters, Logs: logs, Timeout: timeout}
}

func (in *Input) validate() error {
	if in.CameraID == "" {
		return &ValidationError{Field: "camera_id", Reason: "is required"}
	}
	if in.ObjectClass == "" {
		return &ValidationError{Field: "object_class", Reason: "is required"}
	}
	if !in.ObjectClass.Valid() {
		return &ValidationError{Field: "object_class", Reason: "is not a known class"}
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: "must be in [0,1]"}
	}
	if in.ThreatLevel != "" && !in.ThreatLevel.Valid() {
		return &ValidationError{Field: "threat_level", Reason: "is not a known level"}
	}
	return nil
}

// Ingest persists one detection and bumps the owning camera's counters.
// Detection loss is the failure that matters; counter drift is
// tolerable, so the counter update never blocks acceptance and is
// retried best-effort in the background on failure.
func (s *Service) Ingest(ctx context.Context, in Input) (*data.Detection, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ts := in.Timestamp
	if ts.IsZero() {
		ts = now
	}
	threat := in.ThreatLevel
	if threat == "" {
		threat = data.ThreatNormal
	}

	d := &data.Detection{
		DetectionID: data.NewID(data.PrefixDetection),
		CameraID:    in.CameraID,
		ObjectClass: in.ObjectClass,
		Confidence:  in.Confidence,
		ThreatLevel: threat,
		BBox:        in.BBox,
		FrameID:     in.FrameID,
		Timestamp:   ts,
		ExpiresAt:   ts.Add(data.DetectionTTL),
	}

	opCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	if err := s.Detections.Insert(opCtx, d); err != nil {
		if errors.Is(err, data.ErrUnavailable) {
			log.Printf("Ingest: store unavailable, dropping detection for %s: %v", in.CameraID, err)
			s.opLog("WARN", "DETECTION_DROPPED", "store unavailable", in.CameraID)
		}
		return nil, err
	}

	if err := s.Counters.IncrementCounters(opCtx, d.CameraID, d.ObjectClass, d.ThreatLevel); err != nil {
		log.Printf("Ingest: counter update failed for %s, retrying in background: %v", d.CameraID, err)
		go s.retryCounter(d.CameraID, d.ObjectClass, d.ThreatLevel)
	}

	return d, nil
}

// retryCounter makes one more attempt with a fresh deadline. Counters
// are increment-only and commutative, so a late increment lands fine;
// a second failure is drift we accept.
func (s *Service) retryCounter(cameraID string, class data.ObjectClass, threat data.ThreatLevel) {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	if err := s.Counters.IncrementCounters(ctx, cameraID, class, threat); err != nil {
		log.Printf("Ingest: counter retry failed for %s, accepting drift: %v", cameraID, err)
		s.opLog("WARN", "COUNTER_DRIFT", "increment lost after retry", cameraID)
	}
}

func (s *Service) opLog(level, action, msg, cameraID string) {
	if s.Logs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	_ = s.Logs.Insert(ctx, &data.LogEntry{
		Level:    level,
		Category: "DETECTION",
		Action:   action,
		Message:  msg,
		CameraID: cameraID,
	})
}
