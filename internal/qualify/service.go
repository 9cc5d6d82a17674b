package qualify

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/technosupport/ts-shield/internal/data"
)

type EventRepo interface {
	Insert(ctx context.Context, e *data.QualifiedEvent) error
}

// DetectionCounter answers the repeat-occurrence leg of the rule.
type DetectionCounter interface {
	CountSince(ctx context.Context, cameraID string, class data.ObjectClass, cutoff time.Time) (int64, error)
}

type Service struct {
	Events     EventRepo
	Detections DetectionCounter

	rule atomic.Pointer[Rule]
}

func NewService(events EventRepo, detections DetectionCounter, rule *Rule) *Service {
	s := &Service{Events: events, Detections: detections}
	if rule == nil {
		rule = DefaultRule()
	}
	s.rule.Store(rule)
	return s
}

func (s *Service) Rule() *Rule {
	return s.rule.Load()
}

// SetRule swaps the predicate. In-flight Qualify calls finish under the
// rule they started with.
func (s *Service) SetRule(r *Rule) {
	if r == nil {
		return
	}
	s.rule.Store(r)
	log.Printf("Qualifier rule updated: threat_levels=%v floor=%.2f repeat=%d/%s",
		r.ThreatLevels, r.ConfidenceFloor, r.RepeatCount, r.RepeatWindow)
}

// Qualify applies the current rule to one stored detection. Returns the
// persisted event, or nil when the detection does not qualify.
// Qualification is deliberately not deduplicating: the same detection
// fed twice yields two independent events. Suppression is downstream.
func (s *Service) Qualify(ctx context.Context, d *data.Detection) (*data.QualifiedEvent, error) {
	r := s.rule.Load()

	reason := ""
	switch {
	case r.matchesThreat(d.ThreatLevel):
		reason = fmt.Sprintf("threat_level=%s", d.ThreatLevel)
	case r.RepeatCount > 0 && d.Confidence >= r.ConfidenceFloor:
		cutoff := d.Timestamp.Add(-r.RepeatWindow)
		n, err := s.Detections.CountSince(ctx, d.CameraID, d.ObjectClass, cutoff)
		if err != nil {
			return nil, fmt.Errorf("repeat check: %w", err)
		}
		if n >= r.RepeatCount {
			reason = fmt.Sprintf("repeat=%d/%s class=%s", n, r.RepeatWindow, d.ObjectClass)
		}
	}
	if reason == "" {
		return nil, nil
	}

	now := time.Now().UTC()
	e := &data.QualifiedEvent{
		EventID:             data.NewID(data.PrefixEvent),
		CameraID:            d.CameraID,
		DetectionID:         d.DetectionID,
		ObjectClass:         d.ObjectClass,
		ThreatLevel:         d.ThreatLevel,
		Reason:              reason,
		EscalatedToIncident: false,
		Timestamp:           d.Timestamp,
		CreatedAt:           now,
	}
	if err := s.Events.Insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}
