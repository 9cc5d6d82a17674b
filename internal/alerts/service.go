package alerts

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/technosupport/ts-shield/internal/data"
)

type Repo interface {
	Insert(ctx context.Context, a *data.Alert) error
	Get(ctx context.Context, alertID string) (*data.Alert, error)
	Acknowledge(ctx context.Context, alertID, actorID string) error
	Active(ctx context.Context, limit int64) ([]data.Alert, error)
	ActiveCount(ctx context.Context) (int64, error)
	ExistsForIncident(ctx context.Context, incidentID string) (bool, error)
}

// Publisher pushes a freshly created alert to live subscribers. The
// websocket hub implements it; tests use a recorder.
type Publisher interface {
	PublishAlert(a *data.Alert)
}

type Service struct {
	Repo      Repo
	Dedup     *CreationDeduper
	Publisher Publisher
	StationID string

	// Created counts persisted alerts; nil disables it.
	Created prometheus.Counter
}

func NewService(repo Repo, dedup *CreationDeduper, pub Publisher, stationID string) *Service {
	return &Service{Repo: repo, Dedup: dedup, Publisher: pub, StationID: stationID}
}

// PriorityFor maps incident priority onto the alert scale.
func PriorityFor(p data.IncidentPriority) data.AlertPriority {
	if p == data.PriorityCritical {
		return data.AlertHigh
	}
	return data.AlertMedium
}

// Create persists and publishes one alert unless the creation window
// suppresses it. identity is the stable dedup component, normally the
// detection identifier. Returns the stored alert, or nil when
// suppressed.
func (s *Service) Create(ctx context.Context, a *data.Alert, identity string) (*data.Alert, error) {
	if s.Dedup != nil {
		won, err := s.Dedup.Claim(ctx, a.Title, identity)
		if err != nil {
			log.Printf("Alert dedup unavailable, failing open: %v", err)
		}
		if !won {
			return nil, nil
		}
	}
	return s.CreateUnchecked(ctx, a)
}

// CreateUnchecked persists and publishes without consulting the
// creation window. For callers that already claimed it.
func (s *Service) CreateUnchecked(ctx context.Context, a *data.Alert) (*data.Alert, error) {
	now := time.Now().UTC()
	a.AlertID = data.NewID(data.PrefixAlert)
	a.StationID = s.StationID
	a.Timestamp = now
	a.ExpiresAt = now.Add(data.AlertTTL)

	if err := s.Repo.Insert(ctx, a); err != nil {
		return nil, err
	}
	if s.Created != nil {
		s.Created.Inc()
	}
	if s.Publisher != nil {
		s.Publisher.PublishAlert(a)
	}
	return a, nil
}

// Acknowledge marks the alert handled. The repo's conditional update is
// the arbiter; a failed match is classified by re-reading.
func (s *Service) Acknowledge(ctx context.Context, alertID, actorID string) error {
	err := s.Repo.Acknowledge(ctx, alertID, actorID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, data.ErrNoTransition) {
		return err
	}
	cur, getErr := s.Repo.Get(ctx, alertID)
	if getErr != nil || !cur.Active(time.Now().UTC()) {
		return ErrNotFound
	}
	if cur.Acknowledged {
		return ErrAlreadyAcknowledged
	}
	return err
}

func (s *Service) Active(ctx context.Context, limit int64) ([]data.Alert, error) {
	return s.Repo.Active(ctx, limit)
}

// ExistsForIncident is used by the repair sweep to find incidents whose
// synchronous alert never landed.
func (s *Service) ExistsForIncident(ctx context.Context, incidentID string) (bool, error) {
	return s.Repo.ExistsForIncident(ctx, incidentID)
}
