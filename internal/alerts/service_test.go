package alerts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-shield/internal/alerts"
	"github.com/technosupport/ts-shield/internal/data"
)

type MockAlertRepo struct {
	Alerts map[string]*data.Alert
}

func newMockAlertRepo() *MockAlertRepo {
	return &MockAlertRepo{Alerts: make(map[string]*data.Alert)}
}

func (m *MockAlertRepo) Insert(ctx context.Context, a *data.Alert) error {
	cp := *a
	m.Alerts[a.AlertID] = &cp
	return nil
}
func (m *MockAlertRepo) Get(ctx context.Context, alertID string) (*data.Alert, error) {
	a, ok := m.Alerts[alertID]
	if !ok {
		return nil, data.ErrNotFound
	}
	return a, nil
}
func (m *MockAlertRepo) Acknowledge(ctx context.Context, alertID, actorID string) error {
	a, ok := m.Alerts[alertID]
	if !ok || a.Acknowledged || !a.Active(time.Now().UTC()) {
		return data.ErrNoTransition
	}
	now := time.Now().UTC()
	a.Acknowledged = true
	a.AcknowledgedBy = actorID
	a.AcknowledgedAt = &now
	return nil
}
func (m *MockAlertRepo) Active(ctx context.Context, limit int64) ([]data.Alert, error) {
	var out []data.Alert
	for _, a := range m.Alerts {
		if a.Active(time.Now().UTC()) {
			out = append(out, *a)
		}
	}
	return out, nil
}
func (m *MockAlertRepo) ActiveCount(ctx context.Context) (int64, error) {
	var n int64
	for _, a := range m.Alerts {
		if !a.Acknowledged && a.Active(time.Now().UTC()) {
			n++
		}
	}
	return n, nil
}
func (m *MockAlertRepo) ExistsForIncident(ctx context.Context, incidentID string) (bool, error) {
	for _, a := range m.Alerts {
		if a.IncidentID == incidentID {
			return true, nil
		}
	}
	return false, nil
}

type MockPublisher struct {
	Published []*data.Alert
}

func (m *MockPublisher) PublishAlert(a *data.Alert) {
	m.Published = append(m.Published, a)
}

func TestCreate_PersistsAndPublishes(t *testing.T) {
	repo := newMockAlertRepo()
	pub := &MockPublisher{}
	_, rdb := newTestRedis(t)
	svc := alerts.NewService(repo, alerts.NewCreationDeduper(rdb), pub, "EDGE_01")

	a, err := svc.Create(context.Background(), &data.Alert{
		IncidentID:  "INC_1",
		DetectionID: "DET_1",
		Title:       "Critical threat detected",
		Message:     "person at CAM_1",
		Priority:    data.AlertHigh,
		Type:        "THREAT",
	}, "DET_1")
	require.NoError(t, err)
	require.NotNil(t, a)

	stored := repo.Alerts[a.AlertID]
	require.NotNil(t, stored)
	assert.Equal(t, "EDGE_01", stored.StationID)
	assert.WithinDuration(t, stored.Timestamp.Add(time.Hour), stored.ExpiresAt, time.Second)
	require.Len(t, pub.Published, 1)
}

func TestCreate_SuppressedDuplicateIsNotPersisted(t *testing.T) {
	repo := newMockAlertRepo()
	pub := &MockPublisher{}
	_, rdb := newTestRedis(t)
	svc := alerts.NewService(repo, alerts.NewCreationDeduper(rdb), pub, "EDGE_01")

	mk := func() (*data.Alert, error) {
		return svc.Create(context.Background(), &data.Alert{
			Title:       "Critical threat detected",
			DetectionID: "DET_1",
			Priority:    data.AlertHigh,
			Type:        "THREAT",
		}, "DET_1")
	}

	first, err := mk()
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := mk()
	require.NoError(t, err)
	assert.Nil(t, second, "duplicate inside window returns nil, no error")
	assert.Len(t, repo.Alerts, 1)
	assert.Len(t, pub.Published, 1)
}

func TestAcknowledge_SecondActorGetsConflict(t *testing.T) {
	repo := newMockAlertRepo()
	_, rdb := newTestRedis(t)
	svc := alerts.NewService(repo, alerts.NewCreationDeduper(rdb), nil, "EDGE_01")

	a, err := svc.Create(context.Background(), &data.Alert{
		Title: "Vehicle in restricted zone", DetectionID: "DET_2",
		Priority: data.AlertMedium, Type: "ZONE",
	}, "DET_2")
	require.NoError(t, err)

	require.NoError(t, svc.Acknowledge(context.Background(), a.AlertID, "op-1"))
	err = svc.Acknowledge(context.Background(), a.AlertID, "op-2")
	assert.ErrorIs(t, err, alerts.ErrAlreadyAcknowledged)
	assert.Equal(t, "op-1", repo.Alerts[a.AlertID].AcknowledgedBy)
}

func TestAcknowledge_UnknownAlert(t *testing.T) {
	repo := newMockAlertRepo()
	svc := alerts.NewService(repo, nil, nil, "EDGE_01")
	err := svc.Acknowledge(context.Background(), "ALT_missing", "op-1")
	assert.ErrorIs(t, err, alerts.ErrNotFound)
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, data.AlertHigh, alerts.PriorityFor(data.PriorityCritical))
	assert.Equal(t, data.AlertMedium, alerts.PriorityFor(data.PriorityHigh))
	assert.Equal(t, data.AlertMedium, alerts.PriorityFor(data.PriorityMedium))
}
