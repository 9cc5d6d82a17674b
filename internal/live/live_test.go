package live_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-shield/internal/data"
	"github.com/technosupport/ts-shield/internal/live"
)

func TestParseFrame_Valid(t *testing.T) {
	p, err := live.ParseFrame([]byte(`{
		"camera_id": "CAM_1",
		"fps": 14.5,
		"detections": [
			{"object_class": "person", "confidence": 0.92, "threat_level": "critical",
			 "bbox": {"x": 0.1, "y": 0.2, "w": 0.3, "h": 0.4}, "frame_id": 77}
		]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "CAM_1", p.CameraID)
	require.Len(t, p.Detections, 1)
	assert.Equal(t, data.ClassPerson, p.Detections[0].ObjectClass)
	assert.Equal(t, data.ThreatCritical, p.Detections[0].ThreatLevel)
}

func TestParseFrame_RejectsUnknownFields(t *testing.T) {
	_, err := live.ParseFrame([]byte(`{"camera_id": "CAM_1", "fps": 10, "extra_field": true}`))
	assert.Error(t, err, "unknown fields are rejected, never silently persisted")
}

func TestParseFrame_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"missing camera": `{"fps": 10}`,
		"bad class":      `{"camera_id": "CAM_1", "detections": [{"object_class": "drone", "confidence": 0.5}]}`,
		"bad confidence": `{"camera_id": "CAM_1", "detections": [{"object_class": "person", "confidence": 1.5}]}`,
		"bad threat":     `{"camera_id": "CAM_1", "detections": [{"object_class": "person", "confidence": 0.5, "threat_level": "weird"}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := live.ParseFrame([]byte(payload))
			assert.Error(t, err)
		})
	}
}

func TestFrameCache_RoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := live.NewFrameCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	p := &live.FramePayload{CameraID: "CAM_1", FPS: 12, Detections: []live.FrameDetection{
		{ObjectClass: data.ClassVehicle, Confidence: 0.7, ThreatLevel: data.ThreatNormal},
	}}
	require.NoError(t, cache.Save(context.Background(), p))

	got, err := cache.Latest(context.Background(), "CAM_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 12.0, got.FPS)

	mr.FastForward(live.FrameTTL + time.Second)
	got, err = cache.Latest(context.Background(), "CAM_1")
	require.NoError(t, err)
	assert.Nil(t, got, "stale frames are worse than no frame")
}

func TestFrameCache_MissIsNotAnError(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := live.NewFrameCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	got, err := cache.Latest(context.Background(), "CAM_unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}
