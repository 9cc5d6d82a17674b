package escalate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/technosupport/ts-shield/internal/alerts"
	"github.com/technosupport/ts-shield/internal/data"
)

type IncidentRepo interface {
	Insert(ctx context.Context, inc *data.Incident) error
	Get(ctx context.Context, incidentID string) (*data.Incident, error)
	Acknowledge(ctx context.Context, incidentID, actorID string) error
	// Resolve returns the pre-image on success, so the audit entry
	// records the status the incident actually left.
	Resolve(ctx context.Context, incidentID, actorID, notes string) (*data.Incident, error)
	MarkSynced(ctx context.Context, incidentID string) error
	Unsynced(ctx context.Context, limit int64) ([]data.Incident, error)
	List(ctx context.Context, status data.IncidentStatus, limit int64) ([]data.Incident, error)
}

type EventRepo interface {
	MarkEscalated(ctx context.Context, eventID string) error
	UnmarkEscalated(ctx context.Context, eventID string) error
	Unescalated(ctx context.Context, limit int64) ([]data.QualifiedEvent, error)
}

// AlertCreator is the deduplicating alert path. A nil alert return
// from Create means the creation window suppressed it.
type AlertCreator interface {
	Create(ctx context.Context, a *data.Alert, identity string) (*data.Alert, error)
	CreateUnchecked(ctx context.Context, a *data.Alert) (*data.Alert, error)
	ExistsForIncident(ctx context.Context, incidentID string) (bool, error)
}

// Suppressor is the shared creation-time window. The escalator claims
// it before opening an incident, so a burst of identical qualified
// events collapses to one incident and one alert.
type Suppressor interface {
	Claim(ctx context.Context, title, identity string) (bool, error)
}

type Auditor interface {
	Append(ctx context.Context, action, targetType, targetID, actorID string, prev, next map[string]string) (*data.AuditEntry, error)
	ExistsForTarget(ctx context.Context, targetID, action string) (bool, error)
}

type OpLog interface {
	Insert(ctx context.Context, e *data.LogEntry) error
}

const (
	ActionIncidentCreated      = "INCIDENT_CREATED"
	ActionIncidentAcknowledged = "INCIDENT_ACKNOWLEDGED"
	ActionIncidentResolved     = "INCIDENT_RESOLVED"
	ActionIncidentSynced       = "INCIDENT_SYNCED"
)

type Service struct {
	Incidents IncidentRepo
	Events    EventRepo
	Alerts    AlertCreator
	Suppress  Suppressor // nil disables the window
	Audit     Auditor
	Logs      OpLog
	StationID string

	// Incident writes are the record of truth: retried with backoff,
	// never dropped.
	MaxAttempts int
	BaseBackoff time.Duration

	// Optional instrumentation; nil disables.
	Suppressed  prometheus.Counter
	Transitions *prometheus.CounterVec
}

func NewService(incidents IncidentRepo, events EventRepo, alertSvc AlertCreator, auditor Auditor, logs OpLog, stationID string) *Service {
	return &Service{
		Incidents:   incidents,
		Events:      events,
		Alerts:      alertSvc,
		Audit:       auditor,
		Logs:        logs,
		StationID:   stationID,
		MaxAttempts: 3,
		BaseBackoff: 100 * time.Millisecond,
	}
}

func priorityFor(t data.ThreatLevel) data.IncidentPriority {
	switch t {
	case data.ThreatCritical:
		return data.PriorityCritical
	case data.ThreatSuspicious:
		return data.PriorityHigh
	default:
		return data.PriorityMedium
	}
}

// Escalate turns one qualified event into an open incident, with its
// synchronous alert and INCIDENT_CREATED audit entry. Marking the event
// escalated first acts as the claim: under concurrent escalation of the
// same event exactly one caller proceeds, the rest see nil.
//
// The creation window is claimed before the incident exists, so a burst
// of identical qualified events inside the window yields one incident;
// the later events persist, consumed, without incident or alert.
//
// Alert and audit failures after the incident exists are tolerated and
// left to the repair sweep; the incident is never rolled back.
func (s *Service) Escalate(ctx context.Context, e *data.QualifiedEvent) (*data.Incident, error) {
	if err := s.Events.MarkEscalated(ctx, e.EventID); err != nil {
		if errors.Is(err, data.ErrNoTransition) {
			return nil, nil
		}
		return nil, err
	}

	// The window identity is the object, not the detection: every
	// ingest mints a fresh detection id, so keying on it would never
	// suppress anything.
	title := fmt.Sprintf("%s threat at %s", e.ThreatLevel, e.CameraID)
	identity := fmt.Sprintf("%s|%s", e.CameraID, e.ObjectClass)
	if s.Suppress != nil {
		won, err := s.Suppress.Claim(ctx, title, identity)
		if err != nil {
			log.Printf("Escalate: creation window unavailable, failing open: %v", err)
		}
		if !won {
			if s.Suppressed != nil {
				s.Suppressed.Inc()
			}
			s.opLog(ctx, "INFO", "ESCALATION_SUPPRESSED", "duplicate inside creation window", e.CameraID, "")
			return nil, nil
		}
	}

	now := time.Now().UTC()
	inc := &data.Incident{
		IncidentID:      data.NewID(data.PrefixIncident),
		StationID:       s.StationID,
		Title:           title,
		Summary:         fmt.Sprintf("Escalated from qualified event (%s)", e.Reason),
		Priority:        priorityFor(e.ThreatLevel),
		Type:            "SECURITY",
		Status:          data.StatusOpen,
		CameraID:        e.CameraID,
		EventID:         e.EventID,
		DetectionCount:  1,
		SyncedToCentral: false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.writeWithRetry(ctx, func() error { return s.Incidents.Insert(ctx, inc) }); err != nil {
		// Release the event's claim so the stalled-event sweep can
		// retry it; leaving it marked would lose the escalation.
		if relErr := s.Events.UnmarkEscalated(ctx, e.EventID); relErr != nil {
			log.Printf("Escalate: releasing event %s after failed insert also failed: %v", e.EventID, relErr)
		}
		return nil, err
	}

	s.createAlertFor(ctx, inc, e.DetectionID)
	s.appendAudit(ctx, ActionIncidentCreated, inc.IncidentID, "system",
		nil, map[string]string{"status": string(data.StatusOpen), "priority": string(inc.Priority)})
	s.opLog(ctx, "INFO", "INCIDENT_CREATED", inc.Title, inc.CameraID, inc.IncidentID)

	return inc, nil
}

// Acknowledge drives open -> investigating. The conditional update is
// the arbiter; on a no-match the current state is re-read to tell a
// lost race from an illegal move.
func (s *Service) Acknowledge(ctx context.Context, incidentID, actorID string) error {
	err := s.writeWithRetry(ctx, func() error {
		return s.Incidents.Acknowledge(ctx, incidentID, actorID)
	})
	if err != nil {
		if errors.Is(err, data.ErrNoTransition) {
			s.recordTransition("acknowledge", "rejected")
			return s.classifyAckFailure(ctx, incidentID)
		}
		return err
	}
	s.recordTransition("acknowledge", "ok")

	s.appendAudit(ctx, ActionIncidentAcknowledged, incidentID, actorID,
		map[string]string{"status": string(data.StatusOpen)},
		map[string]string{"status": string(data.StatusInvestigating)})
	s.opLog(ctx, "INFO", "INCIDENT_ACKNOWLEDGED", "acknowledged by "+actorID, "", incidentID)
	return nil
}

func (s *Service) classifyAckFailure(ctx context.Context, incidentID string) error {
	cur, err := s.Incidents.Get(ctx, incidentID)
	if err != nil {
		return err
	}
	if cur.Status == data.StatusInvestigating {
		// Another actor just acknowledged it.
		return fmt.Errorf("%w: already investigating", ErrConflict)
	}
	return &InvalidTransitionError{IncidentID: incidentID, From: cur.Status, Attempted: "acknowledge"}
}

// Resolve drives open|investigating -> resolved. Direct resolution from
// open is allowed for every incident; the policy is total.
func (s *Service) Resolve(ctx context.Context, incidentID, actorID, notes string) error {
	// The repo returns the pre-image atomically with the update, so
	// the audit snapshot cannot go stale under a concurrent
	// acknowledge.
	var before *data.Incident
	err := s.writeWithRetry(ctx, func() error {
		var opErr error
		before, opErr = s.Incidents.Resolve(ctx, incidentID, actorID, notes)
		return opErr
	})
	if err != nil {
		if errors.Is(err, data.ErrNoTransition) {
			s.recordTransition("resolve", "rejected")
			cur, getErr := s.Incidents.Get(ctx, incidentID)
			if getErr != nil {
				return getErr
			}
			return &InvalidTransitionError{IncidentID: incidentID, From: cur.Status, Attempted: "resolve"}
		}
		return err
	}
	s.recordTransition("resolve", "ok")

	s.appendAudit(ctx, ActionIncidentResolved, incidentID, actorID,
		map[string]string{"status": string(before.Status)},
		map[string]string{"status": string(data.StatusResolved), "notes": notes})
	s.opLog(ctx, "INFO", "INCIDENT_RESOLVED", notes, "", incidentID)
	return nil
}

// MarkSynced records the central gateway's confirmation. The export
// itself happens outside this component.
func (s *Service) MarkSynced(ctx context.Context, incidentID string) error {
	if err := s.Incidents.MarkSynced(ctx, incidentID); err != nil {
		return err
	}
	s.appendAudit(ctx, ActionIncidentSynced, incidentID, "sync-gateway",
		map[string]string{"synced_to_central": "false"},
		map[string]string{"synced_to_central": "true"})
	return nil
}

func (s *Service) Unsynced(ctx context.Context, limit int64) ([]data.Incident, error) {
	return s.Incidents.Unsynced(ctx, limit)
}

func (s *Service) writeWithRetry(ctx context.Context, op func() error) error {
	var lastErr error
	backoff := s.BaseBackoff
	for attempt := 0; attempt < s.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		lastErr = op()
		if lastErr == nil || !errors.Is(lastErr, data.ErrUnavailable) {
			return lastErr
		}
	}
	return lastErr
}

// createAlertFor skips the window: the escalator claimed it before the
// incident was opened.
func (s *Service) createAlertFor(ctx context.Context, inc *data.Incident, detectionID string) {
	_, err := s.Alerts.CreateUnchecked(ctx, &data.Alert{
		IncidentID:  inc.IncidentID,
		DetectionID: detectionID,
		Title:       inc.Title,
		Message:     inc.Summary,
		Priority:    alerts.PriorityFor(inc.Priority),
		Type:        inc.Type,
	})
	if err != nil {
		log.Printf("Escalate: alert creation failed for %s, repair sweep will recover: %v", inc.IncidentID, err)
	}
}

func (s *Service) recordTransition(action, outcome string) {
	if s.Transitions != nil {
		s.Transitions.WithLabelValues(action, outcome).Inc()
	}
}

func (s *Service) appendAudit(ctx context.Context, action, incidentID, actorID string, prev, next map[string]string) {
	if _, err := s.Audit.Append(ctx, action, "incident", incidentID, actorID, prev, next); err != nil {
		log.Printf("Escalate: audit append failed for %s %s: %v", action, incidentID, err)
	}
}

func (s *Service) opLog(ctx context.Context, level, action, msg, cameraID, incidentID string) {
	if s.Logs == nil {
		return
	}
	_ = s.Logs.Insert(ctx, &data.LogEntry{
		Level:      level,
		Category:   "INCIDENT",
		Action:     action,
		Message:    msg,
		CameraID:   cameraID,
		IncidentID: incidentID,
	})
}
