package alerts_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-shield/internal/alerts"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestCreationDedup_SuppressesWithinWindow(t *testing.T) {
	_, rdb := newTestRedis(t)
	d := alerts.NewCreationDeduper(rdb)

	won, err := d.Claim(context.Background(), "Critical threat detected", "DET_1")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = d.Claim(context.Background(), "Critical threat detected", "DET_1")
	require.NoError(t, err)
	assert.False(t, won, "second claim inside the window must be suppressed")
}

func TestCreationDedup_DistinctIdentitiesDoNotCollide(t *testing.T) {
	_, rdb := newTestRedis(t)
	d := alerts.NewCreationDeduper(rdb)

	won, _ := d.Claim(context.Background(), "Critical threat detected", "DET_1")
	assert.True(t, won)
	won, _ = d.Claim(context.Background(), "Critical threat detected", "DET_2")
	assert.True(t, won, "different identity must not be suppressed")
	won, _ = d.Claim(context.Background(), "Vehicle in restricted zone", "DET_1")
	assert.True(t, won, "different title must not be suppressed")
}

func TestCreationDedup_WindowExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	d := alerts.NewCreationDeduper(rdb)

	won, _ := d.Claim(context.Background(), "Critical threat detected", "DET_1")
	require.True(t, won)

	mr.FastForward(alerts.CreationWindow + time.Second)

	won, err := d.Claim(context.Background(), "Critical threat detected", "DET_1")
	require.NoError(t, err)
	assert.True(t, won, "claim after window expiry must succeed")
}

func TestCreationDedup_FailsOpenOnRedisOutage(t *testing.T) {
	mr, rdb := newTestRedis(t)
	d := alerts.NewCreationDeduper(rdb)
	mr.Close()

	won, err := d.Claim(context.Background(), "Critical threat detected", "DET_1")
	assert.Error(t, err)
	assert.True(t, won, "an unreachable window must never suppress a genuine alert")
}

func TestPresentationDedup_KeyDerivation(t *testing.T) {
	assert.Equal(t, "DET_9", alerts.PresentationKey("DET_9", "critical_alert", "person"))
	assert.Equal(t, "critical_alert|person", alerts.PresentationKey("", "critical_alert", "person"))
}

func TestPresentationDedup_SuppressesRepeats(t *testing.T) {
	d := alerts.NewPresentationDeduper(50 * time.Millisecond)

	assert.True(t, d.ShouldForward("DET_1"))
	assert.False(t, d.ShouldForward("DET_1"))
	assert.True(t, d.ShouldForward("DET_2"))

	time.Sleep(120 * time.Millisecond)
	assert.True(t, d.ShouldForward("DET_1"), "window expired, event is new again")
}
