package cameras

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/technosupport/ts-shield/internal/data"
)

type Repo interface {
	Upsert(ctx context.Context, c *data.Camera) error
	UpdateHealth(ctx context.Context, cameraID string, h data.CameraHealth) error
	MarkStaleOffline(ctx context.Context, staleAfter time.Duration) (int64, error)
	ResetTodayThreats(ctx context.Context) (int64, error)
	Get(ctx context.Context, cameraID string) (*data.Camera, error)
	All(ctx context.Context) ([]data.Camera, error)
}

var ErrUnknownCamera = errors.New("camera not registered")

// Service owns the camera registry's operational lifecycle: heartbeats,
// the stale-offline sweep, and the midnight counter reset. Detection
// counters are incremented by the ingest path, not here.
type Service struct {
	Repo Repo

	// StaleAfter is how long a LIVE camera may go silent before the
	// monitor flips it OFFLINE.
	StaleAfter time.Duration
}

func NewService(repo Repo, staleAfter time.Duration) *Service {
	if staleAfter <= 0 {
		staleAfter = 90 * time.Second
	}
	return &Service{Repo: repo, StaleAfter: staleAfter}
}

// Register upserts a camera record. Counters are seeded to zero on
// first sighting and never touched again by this path.
func (s *Service) Register(ctx context.Context, c *data.Camera) error {
	if c.CameraID == "" {
		return errors.New("camera_id is required")
	}
	return s.Repo.Upsert(ctx, c)
}

// Heartbeat records a health snapshot and flips the camera LIVE.
func (s *Service) Heartbeat(ctx context.Context, cameraID string, h data.CameraHealth) error {
	err := s.Repo.UpdateHealth(ctx, cameraID, h)
	if errors.Is(err, data.ErrNotFound) {
		return ErrUnknownCamera
	}
	return err
}

func (s *Service) Get(ctx context.Context, cameraID string) (*data.Camera, error) {
	return s.Repo.Get(ctx, cameraID)
}

func (s *Service) All(ctx context.Context) ([]data.Camera, error) {
	return s.Repo.All(ctx)
}

// StartMonitor sweeps for stale heartbeats every interval.
func (s *Service) StartMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Repo.MarkStaleOffline(ctx, s.StaleAfter)
				if err != nil {
					log.Printf("Camera monitor: stale sweep failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("Camera monitor: %d cameras went OFFLINE (no heartbeat in %s)", n, s.StaleAfter)
				}
			}
		}
	}()
}

// StartDailyReset zeroes today_threats shortly after each local
// midnight. Lifetime counters stay monotonic.
func (s *Service) StartDailyReset(ctx context.Context) {
	go func() {
		for {
			now := time.Now()
			next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 5, 0, now.Location()).AddDate(0, 0, 1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(next)):
				n, err := s.Repo.ResetTodayThreats(ctx)
				if err != nil {
					log.Printf("Daily reset: today_threats reset failed: %v", err)
					continue
				}
				log.Printf("Daily reset: cleared today_threats on %d cameras", n)
			}
		}
	}()
}
