package pipeline

import (
	"context"
	"log"

	"github.com/technosupport/ts-shield/internal/data"
	"github.com/technosupport/ts-shield/internal/escalate"
	"github.com/technosupport/ts-shield/internal/ingest"
	"github.com/technosupport/ts-shield/internal/live"
	"github.com/technosupport/ts-shield/internal/metrics"
	"github.com/technosupport/ts-shield/internal/qualify"
)

// Service chains ingest, qualification and escalation for one
// detection. Each inbound detection runs the chain on its own handler
// goroutine; the store arbitrates all cross-detection races.
type Service struct {
	Ingest   *ingest.Service
	Qualify  *qualify.Service
	Escalate *escalate.Service
	Metrics  *metrics.Collector // nil disables instrumentation
}

func New(ing *ingest.Service, qual *qualify.Service, esc *escalate.Service, m *metrics.Collector) *Service {
	return &Service{Ingest: ing, Qualify: qual, Escalate: esc, Metrics: m}
}

// Process runs one detection through the full chain. The detection is
// the authoritative outcome: once persisted, failures further down are
// logged and repaired asynchronously, never bubbled back to the sender.
func (s *Service) Process(ctx context.Context, in ingest.Input) (*data.Detection, error) {
	d, err := s.Ingest.Ingest(ctx, in)
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.DetectionsDropped.Inc()
		}
		return nil, err
	}
	if s.Metrics != nil {
		s.Metrics.DetectionsIngested.WithLabelValues(string(d.ObjectClass)).Inc()
	}

	e, err := s.Qualify.Qualify(ctx, d)
	if err != nil {
		log.Printf("Pipeline: qualification failed for %s: %v", d.DetectionID, err)
		return d, nil
	}
	if e == nil {
		return d, nil
	}
	if s.Metrics != nil {
		s.Metrics.EventsQualified.Inc()
	}

	inc, err := s.Escalate.Escalate(ctx, e)
	if err != nil {
		log.Printf("Pipeline: escalation failed for %s, repair sweep will recover: %v", e.EventID, err)
		return d, nil
	}
	if inc != nil && s.Metrics != nil {
		s.Metrics.IncidentsCreated.WithLabelValues(string(inc.Priority)).Inc()
	}
	return d, nil
}

// FrameSink adapts Process to the live consumer's per-detection
// hand-off.
func (s *Service) FrameSink(ctx context.Context, cameraID string, fd live.FrameDetection) {
	_, err := s.Process(ctx, ingest.Input{
		CameraID:    cameraID,
		ObjectClass: fd.ObjectClass,
		Confidence:  fd.Confidence,
		ThreatLevel: fd.ThreatLevel,
		BBox:        fd.BBox,
		FrameID:     fd.FrameID,
	})
	if err != nil {
		log.Printf("Pipeline: frame detection from %s dropped: %v", cameraID, err)
	}
}
