package audit

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/technosupport/ts-shield/internal/data"
)

// Repo is the slice of the store the audit trail needs.
type Repo interface {
	Insert(ctx context.Context, e *data.AuditEntry) error
	Recent(ctx context.Context, limit int64) ([]data.AuditEntry, error)
	ByTarget(ctx context.Context, targetID string) ([]data.AuditEntry, error)
	ExistsForTarget(ctx context.Context, targetID, action string) (bool, error)
}

type Service struct {
	Repo  Repo
	Spool *Spool // nil disables failover

	// Retry schedule for store outages. Audit writes are the record of
	// truth, so they retry before spooling rather than dropping.
	MaxAttempts int
	BaseBackoff time.Duration

	// Spooled counts entries diverted to disk; nil disables it.
	Spooled prometheus.Counter
}

func NewService(repo Repo, spool *Spool) *Service {
	return &Service{
		Repo:        repo,
		Spool:       spool,
		MaxAttempts: 3,
		BaseBackoff: 100 * time.Millisecond,
	}
}

// Append builds, checksums and persists one entry. On store outage it
// retries with exponential backoff, then spools to disk; the entry is
// returned either way so callers can proceed.
// Append-only enforcement: no update or delete method exists on this
// service or its repo.
func (s *Service) Append(ctx context.Context, action, targetType, targetID, actorID string, prev, next map[string]string) (*data.AuditEntry, error) {
	e := &data.AuditEntry{
		AuditID:       data.NewID(data.PrefixAudit),
		Action:        action,
		ActorID:       actorID,
		TargetType:    targetType,
		TargetID:      targetID,
		PreviousState: prev,
		NewState:      next,
		Timestamp:     time.Now().UTC(),
	}
	sum, err := Checksum(e)
	if err != nil {
		return nil, err
	}
	e.Checksum = sum

	if err := s.writeWithRetry(ctx, e); err != nil {
		if s.Spool == nil {
			return nil, err
		}
		log.Printf("Audit store write failed: %v. Spooling entry %s", err, e.AuditID)
		if spoolErr := s.Spool.Append(e); spoolErr != nil {
			log.Printf("CRITICAL: audit spool failed for entry %s: %v", e.AuditID, spoolErr)
			return nil, spoolErr
		}
		if s.Spooled != nil {
			s.Spooled.Inc()
		}
	}
	return e, nil
}

func (s *Service) writeWithRetry(ctx context.Context, e *data.AuditEntry) error {
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
		lastErr = s.Repo.Insert(ctx, e)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, data.ErrUnavailable) {
			return lastErr
		}
	}
	return lastErr
}

// VerifyRecent re-checksums the newest entries and returns one
// IntegrityError per mismatch. Mismatches are reported, never repaired.
func (s *Service) VerifyRecent(ctx context.Context, limit int64) ([]*IntegrityError, error) {
	entries, err := s.Repo.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	var bad []*IntegrityError
	for i := range entries {
		e := &entries[i]
		want, err := Checksum(e)
		if err != nil || want != e.Checksum {
			bad = append(bad, &IntegrityError{
				AuditID:  e.AuditID,
				Expected: want,
				Stored:   e.Checksum,
			})
		}
	}
	return bad, nil
}

func (s *Service) Trail(ctx context.Context, targetID string) ([]data.AuditEntry, error) {
	return s.Repo.ByTarget(ctx, targetID)
}

func (s *Service) Recent(ctx context.Context, limit int64) ([]data.AuditEntry, error) {
	return s.Repo.Recent(ctx, limit)
}

// ExistsForTarget reports whether an entry with the given action already
// covers the target. The repair sweep uses it to avoid duplicates.
func (s *Service) ExistsForTarget(ctx context.Context, targetID, action string) (bool, error) {
	return s.Repo.ExistsForTarget(ctx, targetID, action)
}
