package qualify_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-shield/internal/data"
	"github.com/technosupport/ts-shield/internal/qualify"
)

type MockEventRepo struct {
	Events []data.QualifiedEvent
}

func (m *MockEventRepo) Insert(ctx context.Context, e *data.QualifiedEvent) error {
	m.Events = append(m.Events, *e)
	return nil
}

type MockCounter struct {
	Count int64
}

func (m *MockCounter) CountSince(ctx context.Context, cameraID string, class data.ObjectClass, cutoff time.Time) (int64, error) {
	return m.Count, nil
}

func det(threat data.ThreatLevel, conf float64) *data.Detection {
	now := time.Now().UTC()
	return &data.Detection{
		DetectionID: data.NewID(data.PrefixDetection),
		CameraID:    "CAM_1",
		ObjectClass: data.ClassPerson,
		Confidence:  conf,
		ThreatLevel: threat,
		Timestamp:   now,
		ExpiresAt:   now.Add(data.DetectionTTL),
	}
}

func TestQualify_ThreatLevelLeg(t *testing.T) {
	repo := &MockEventRepo{}
	svc := qualify.NewService(repo, &MockCounter{}, nil)

	e, err := svc.Qualify(context.Background(), det(data.ThreatCritical, 0.92))
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "threat_level=critical", e.Reason)
	assert.False(t, e.EscalatedToIncident)
	require.Len(t, repo.Events, 1)
}

func TestQualify_NormalDetectionDoesNotQualify(t *testing.T) {
	repo := &MockEventRepo{}
	svc := qualify.NewService(repo, &MockCounter{Count: 0}, nil)

	e, err := svc.Qualify(context.Background(), det(data.ThreatNormal, 0.5))
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Empty(t, repo.Events)
}

func TestQualify_RepeatLeg(t *testing.T) {
	repo := &MockEventRepo{}
	svc := qualify.NewService(repo, &MockCounter{Count: 5}, nil)

	e, err := svc.Qualify(context.Background(), det(data.ThreatNormal, 0.9))
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Contains(t, e.Reason, "repeat=5")
}

func TestQualify_RepeatLegNeedsConfidence(t *testing.T) {
	repo := &MockEventRepo{}
	svc := qualify.NewService(repo, &MockCounter{Count: 5}, nil)

	e, err := svc.Qualify(context.Background(), det(data.ThreatNormal, 0.6))
	require.NoError(t, err)
	assert.Nil(t, e, "below the confidence floor the repeat leg must not fire")
}

func TestQualify_IsNotDeduplicating(t *testing.T) {
	repo := &MockEventRepo{}
	svc := qualify.NewService(repo, &MockCounter{}, nil)

	d := det(data.ThreatCritical, 0.92)
	_, err := svc.Qualify(context.Background(), d)
	require.NoError(t, err)
	_, err = svc.Qualify(context.Background(), d)
	require.NoError(t, err)

	require.Len(t, repo.Events, 2)
	assert.NotEqual(t, repo.Events[0].EventID, repo.Events[1].EventID)
}

func TestLoadRule_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rule.yaml")
	require.NoError(t, os.WriteFile(path, []byte("confidence_floor: 1.5\n"), 0o600))
	_, err := qualify.LoadRule(path)
	assert.Error(t, err)
}

func TestLoadRule_AndSwap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rule.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"threat_levels: [critical]\nconfidence_floor: 0.7\nrepeat_count: 2\nrepeat_window: 10s\n"), 0o600))

	r, err := qualify.LoadRule(path)
	require.NoError(t, err)

	repo := &MockEventRepo{}
	svc := qualify.NewService(repo, &MockCounter{}, nil)
	svc.SetRule(r)

	// Suspicious no longer qualifies under the new rule.
	e, err := svc.Qualify(context.Background(), det(data.ThreatSuspicious, 0.5))
	require.NoError(t, err)
	assert.Nil(t, e)

	e, err = svc.Qualify(context.Background(), det(data.ThreatCritical, 0.5))
	require.NoError(t, err)
	assert.NotNil(t, e)
}
