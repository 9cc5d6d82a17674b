package ingest_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-shield/internal/data"
	"github.com/technosupport/ts-shield/internal/ingest"
)

type MockDetectionRepo struct {
	mu         sync.Mutex
	Detections []data.Detection
	FailWith   error
}

func (m *MockDetectionRepo) Insert(ctx context.Context, d *data.Detection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Detections = append(m.Detections, *d)
	return nil
}

type MockCounterRepo struct {
	mu       sync.Mutex
	Counts   map[string]int64
	FailOnce bool
}

func (m *MockCounterRepo) IncrementCounters(ctx context.Context, cameraID string, class data.ObjectClass, threat data.ThreatLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOnce {
		m.FailOnce = false
		return data.ErrUnavailable
	}
	if m.Counts == nil {
		m.Counts = make(map[string]int64)
	}
	m.Counts[cameraID]++
	return nil
}

func (m *MockCounterRepo) total(cameraID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counts[cameraID]
}

func validInput() ingest.Input {
	return ingest.Input{
		CameraID:    "CAM_1",
		ObjectClass: data.ClassPerson,
		Confidence:  0.92,
		ThreatLevel: data.ThreatCritical,
	}
}

func TestIngest_PersistsWithExpiry(t *testing.T) {
	repo := &MockDetectionRepo{}
	counters := &MockCounterRepo{}
	svc := ingest.NewService(repo, counters, nil, time.Second)

	d, err := svc.Ingest(context.Background(), validInput())
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.WithinDuration(t, d.Timestamp.Add(24*time.Hour), d.ExpiresAt, time.Second)
	assert.True(t, d.Active(time.Now().UTC()))
	assert.False(t, d.Active(d.ExpiresAt.Add(time.Minute)), "past expiry the detection is gone")
	assert.True(t, d.Active(d.ExpiresAt.Add(-time.Minute)))
	assert.EqualValues(t, 1, counters.total("CAM_1"))
}

func TestIngest_Validation(t *testing.T) {
	svc := ingest.NewService(&MockDetectionRepo{}, &MockCounterRepo{}, nil, time.Second)

	cases := []struct {
		name   string
		mutate func(*ingest.Input)
	}{
		{"missing camera", func(in *ingest.Input) { in.CameraID = "" }},
		{"missing class", func(in *ingest.Input) { in.ObjectClass = "" }},
		{"unknown class", func(in *ingest.Input) { in.ObjectClass = "drone" }},
		{"confidence too high", func(in *ingest.Input) { in.Confidence = 1.2 }},
		{"confidence negative", func(in *ingest.Input) { in.Confidence = -0.1 }},
		{"unknown threat", func(in *ingest.Input) { in.ThreatLevel = "apocalyptic" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Ingest(context.Background(), in)
			var ve *ingest.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestIngest_DefaultsTimestampAndThreat(t *testing.T) {
	svc := ingest.NewService(&MockDetectionRepo{}, &MockCounterRepo{}, nil, time.Second)

	in := validInput()
	in.ThreatLevel = ""
	in.Timestamp = time.Time{}

	d, err := svc.Ingest(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, data.ThreatNormal, d.ThreatLevel)
	assert.WithinDuration(t, time.Now().UTC(), d.Timestamp, time.Second)
}

func TestIngest_CounterCorrectUnderConcurrency(t *testing.T) {
	repo := &MockDetectionRepo{}
	counters := &MockCounterRepo{}
	svc := ingest.NewService(repo, counters, nil, time.Second)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ingest(context.Background(), validInput())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, n, counters.total("CAM_1"))
	assert.Len(t, repo.Detections, n)
}

func TestIngest_StoreUnavailableDropsDetection(t *testing.T) {
	repo := &MockDetectionRepo{FailWith: data.ErrUnavailable}
	counters := &MockCounterRepo{}
	svc := ingest.NewService(repo, counters, nil, time.Second)

	_, err := svc.Ingest(context.Background(), validInput())
	assert.ErrorIs(t, err, data.ErrUnavailable)
	assert.EqualValues(t, 0, counters.total("CAM_1"), "no counter bump for a dropped detection")
}

func TestIngest_CounterFailureDoesNotBlockAcceptance(t *testing.T) {
	repo := &MockDetectionRepo{}
	counters := &MockCounterRepo{FailOnce: true}
	svc := ingest.NewService(repo, counters, nil, time.Second)

	d, err := svc.Ingest(context.Background(), validInput())
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Len(t, repo.Detections, 1)

	// Background retry lands the increment.
	assert.Eventually(t, func() bool {
		return counters.total("CAM_1") == 1
	}, time.Second, 10*time.Millisecond)
}
