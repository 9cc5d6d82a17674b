package dashboard

import (
	"context"
	"time"

	"github.com/technosupport/ts-shield/internal/data"
)

type CameraStats interface {
	Aggregate(ctx context.Context) (*data.CameraAggregate, error)
}

type IncidentStats interface {
	ActiveByPriority(ctx context.Context) (map[data.IncidentPriority]int64, error)
}

type AlertStats interface {
	ActiveCount(ctx context.Context) (int64, error)
}

type Stats struct {
	Cameras struct {
		Total           int64 `json:"total"`
		Online          int64 `json:"online"`
		ThreatsToday    int64 `json:"threats_today"`
		TotalDetections int64 `json:"total_detections"`
	} `json:"cameras"`
	IncidentsByPriority map[data.IncidentPriority]int64 `json:"incidents_by_priority"`
	ActiveAlertCount    int64                           `json:"active_alert_count"`
	GeneratedAt         time.Time                       `json:"generated_at"`
}

// Service computes the rollup at call time. No materialized view: the
// backing collections are TTL-pruned, so the scans stay bounded and the
// endpoint is safe to poll at sub-second cadence.
type Service struct {
	Cameras   CameraStats
	Incidents IncidentStats
	Alerts    AlertStats
}

func NewService(cameras CameraStats, incidents IncidentStats, alertStats AlertStats) *Service {
	return &Service{Cameras: cameras, Incidents: incidents, Alerts: alertStats}
}

func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	out := &Stats{GeneratedAt: time.Now().UTC()}

	cams, err := s.Cameras.Aggregate(ctx)
	if err != nil {
		return nil, err
	}
	out.Cameras.Total = cams.Total
	out.Cameras.Online = cams.Online
	out.Cameras.ThreatsToday = cams.ThreatsToday
	out.Cameras.TotalDetections = cams.TotalDetections

	byPriority, err := s.Incidents.ActiveByPriority(ctx)
	if err != nil {
		return nil, err
	}
	if byPriority == nil {
		byPriority = map[data.IncidentPriority]int64{}
	}
	out.IncidentsByPriority = byPriority

	alertCount, err := s.Alerts.ActiveCount(ctx)
	if err != nil {
		return nil, err
	}
	out.ActiveAlertCount = alertCount
	return out, nil
}
