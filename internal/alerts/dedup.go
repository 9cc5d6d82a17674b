package alerts

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const (
	// CreationWindow bounds persisted-alert volume. Two alerts with the
	// same identity inside this window collapse to one stored record.
	CreationWindow = 10 * time.Second

	// PresentationWindow bounds operator-perceived noise on the merged
	// live+polled stream. Longer than the creation window on purpose:
	// operators care about "is this still happening".
	PresentationWindow = 60 * time.Second
)

// CreationDeduper is the server-side layer. The window lives in Redis
// so every process sees the same suppression decision; SETNX with a TTL
// makes claim-and-expire one round trip.
type CreationDeduper struct {
	Redis  *redis.Client
	Window time.Duration
}

func NewCreationDeduper(r *redis.Client) *CreationDeduper {
	return &CreationDeduper{Redis: r, Window: CreationWindow}
}

// Claim reports whether the caller won the window for this identity.
// A Redis outage fails open: a duplicate alert is noise, a suppressed
// genuine alert is a miss, so errors never suppress.
func (d *CreationDeduper) Claim(ctx context.Context, title, identity string) (bool, error) {
	key := fmt.Sprintf("alert:dedup:%s|%s", title, identity)
	ok, err := d.Redis.SetNX(ctx, key, "1", d.Window).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}

// PresentationDeduper is the client-side layer, applied where live push
// events merge with polled history for display. The server never runs
// it: this type is exported for the dashboard and other viewer
// collaborators to embed, and each viewer surface keeps its own
// in-process window.
type PresentationDeduper struct {
	seen *lru.LRU[string, time.Time]
}

func NewPresentationDeduper(window time.Duration) *PresentationDeduper {
	if window <= 0 {
		window = PresentationWindow
	}
	return &PresentationDeduper{
		seen: lru.NewLRU[string, time.Time](4096, nil, window),
	}
}

// PresentationKey derives the dedup identity for a display event:
// the detection identifier when present, else type plus object class.
func PresentationKey(detectionID, eventType, objectClass string) string {
	if detectionID != "" {
		return detectionID
	}
	return eventType + "|" + objectClass
}

// ShouldForward records the fire time and reports whether the event is
// new within the window.
func (d *PresentationDeduper) ShouldForward(key string) bool {
	if _, ok := d.seen.Get(key); ok {
		return false
	}
	d.seen.Add(key, time.Now())
	return true
}
