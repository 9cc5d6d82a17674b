package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-shield/internal/ratelimit"
)

func TestCheck_AllowsUpToRateThenBlocks(t *testing.T) {
	mr := miniredis.RunT(t)
	l := ratelimit.NewLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	cfg := ratelimit.LimitConfig{Rate: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		d, err := l.Check(context.Background(), "cam:CAM_1", cfg)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should pass", i)
	}

	d, err := l.Check(context.Background(), "cam:CAM_1", cfg)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestCheck_WindowResets(t *testing.T) {
	mr := miniredis.RunT(t)
	l := ratelimit.NewLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	cfg := ratelimit.LimitConfig{Rate: 1, Window: 10 * time.Second}

	d, _ := l.Check(context.Background(), "cam:CAM_1", cfg)
	require.True(t, d.Allowed)
	d, _ = l.Check(context.Background(), "cam:CAM_1", cfg)
	require.False(t, d.Allowed)

	mr.FastForward(11 * time.Second)
	d, err := l.Check(context.Background(), "cam:CAM_1", cfg)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	mr := miniredis.RunT(t)
	l := ratelimit.NewLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	cfg := ratelimit.LimitConfig{Rate: 1, Window: time.Minute}

	d, _ := l.Check(context.Background(), "cam:CAM_1", cfg)
	require.True(t, d.Allowed)
	d, _ = l.Check(context.Background(), "cam:CAM_2", cfg)
	assert.True(t, d.Allowed)
}

func TestCheck_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	l := ratelimit.NewLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	mr.Close()

	_, err := l.Check(context.Background(), "cam:CAM_1", ratelimit.LimitConfig{Rate: 1, Window: time.Minute})
	assert.ErrorIs(t, err, ratelimit.ErrRedisUnavailable)
}
