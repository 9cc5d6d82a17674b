package live

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FrameTTL bounds staleness for polling UIs; a frame older than this is
// worse than no frame.
const FrameTTL = 10 * time.Second

// FrameCache keeps the latest frame per camera in Redis so UIs that
// poll instead of subscribing see the same payload the hub pushed.
type FrameCache struct {
	Redis *redis.Client
}

func NewFrameCache(r *redis.Client) *FrameCache {
	return &FrameCache{Redis: r}
}

func frameKey(cameraID string) string {
	return fmt.Sprintf("frame:latest:%s", cameraID)
}

func (c *FrameCache) Save(ctx context.Context, p *FramePayload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, frameKey(p.CameraID), b, FrameTTL).Err()
}

// Latest returns the cached frame, or nil when none is fresh.
func (c *FrameCache) Latest(ctx context.Context, cameraID string) (*FramePayload, error) {
	raw, err := c.Redis.Get(ctx, frameKey(cameraID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p FramePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
