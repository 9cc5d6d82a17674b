package dashboard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-shield/internal/dashboard"
	"github.com/technosupport/ts-shield/internal/data"
)

type stubCameras struct{ agg data.CameraAggregate }

func (s *stubCameras) Aggregate(ctx context.Context) (*data.CameraAggregate, error) {
	return &s.agg, nil
}

type stubIncidents struct{ m map[data.IncidentPriority]int64 }

func (s *stubIncidents) ActiveByPriority(ctx context.Context) (map[data.IncidentPriority]int64, error) {
	return s.m, nil
}

type stubAlerts struct{ n int64 }

func (s *stubAlerts) ActiveCount(ctx context.Context) (int64, error) { return s.n, nil }

func TestGetStats(t *testing.T) {
	svc := dashboard.NewService(
		&stubCameras{agg: data.CameraAggregate{Total: 12, Online: 9, ThreatsToday: 4, TotalDetections: 5120}},
		&stubIncidents{m: map[data.IncidentPriority]int64{data.PriorityCritical: 2, data.PriorityMedium: 1}},
		&stubAlerts{n: 3},
	)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 12, stats.Cameras.Total)
	assert.EqualValues(t, 9, stats.Cameras.Online)
	assert.EqualValues(t, 4, stats.Cameras.ThreatsToday)
	assert.EqualValues(t, 5120, stats.Cameras.TotalDetections)
	assert.EqualValues(t, 2, stats.IncidentsByPriority[data.PriorityCritical])
	assert.EqualValues(t, 3, stats.ActiveAlertCount)
	assert.False(t, stats.GeneratedAt.IsZero())
}

func TestGetStats_EmptyStore(t *testing.T) {
	svc := dashboard.NewService(&stubCameras{}, &stubIncidents{}, &stubAlerts{})
	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, stats.IncidentsByPriority)
	assert.EqualValues(t, 0, stats.ActiveAlertCount)
}
