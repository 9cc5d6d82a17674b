package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// DefaultSubject carries full frame payloads from the inference
	// collaborator.
	DefaultSubject = "shield.detections.frame"

	MaxFrameBytes         = 64 * 1024
	MaxDetectionsPerFrame = 50
)

// ParseFrame is the strict ingress parse: unknown fields, oversized
// payloads and out-of-range values are rejected before anything is
// persisted or pushed.
func ParseFrame(b []byte) (*FramePayload, error) {
	if len(b) > MaxFrameBytes {
		return nil, fmt.Errorf("frame payload too large: %d > %d", len(b), MaxFrameBytes)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var p FramePayload
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	if p.CameraID == "" {
		return nil, errors.New("camera_id is required")
	}
	if len(p.Detections) > MaxDetectionsPerFrame {
		return nil, fmt.Errorf("too many detections: %d > %d", len(p.Detections), MaxDetectionsPerFrame)
	}
	for i, d := range p.Detections {
		if !d.ObjectClass.Valid() {
			return nil, fmt.Errorf("invalid object_class at index %d: %s", i, d.ObjectClass)
		}
		if d.Confidence < 0 || d.Confidence > 1 {
			return nil, fmt.Errorf("confidence out of range at index %d: %f", i, d.Confidence)
		}
		if d.ThreatLevel != "" && !d.ThreatLevel.Valid() {
			return nil, fmt.Errorf("invalid threat_level at index %d: %s", i, d.ThreatLevel)
		}
	}
	return &p, nil
}

// Sink receives each detection of an accepted frame. The pipeline
// implements it; delivery is at-most-once.
type Sink func(ctx context.Context, cameraID string, d FrameDetection)

// Consumer subscribes to the detection subject, fans accepted frames
// out to the hub and cache, and hands individual detections to the
// pipeline sink.
type Consumer struct {
	Conn    *nats.Conn
	Subject string
	Hub     *Hub
	Cache   *FrameCache
	Sink    Sink
	Timeout time.Duration

	sub *nats.Subscription
}

func (c *Consumer) Start() error {
	subject := c.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	sub, err := c.Conn.Subscribe(subject, func(msg *nats.Msg) {
		c.handle(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.sub = sub
	log.Printf("Live ingest: subscribed to %s", subject)
	return nil
}

func (c *Consumer) Stop() {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
}

func (c *Consumer) handle(raw []byte) {
	p, err := ParseFrame(raw)
	if err != nil {
		log.Printf("Live ingest: rejected frame: %v", err)
		return
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if c.Cache != nil {
		if err := c.Cache.Save(ctx, p); err != nil {
			log.Printf("Live ingest: frame cache write failed for %s: %v", p.CameraID, err)
		}
	}
	if c.Hub != nil {
		c.Hub.PublishFrame(p)
	}
	if c.Sink != nil {
		for _, d := range p.Detections {
			c.Sink(ctx, p.CameraID, d)
		}
	}
}
