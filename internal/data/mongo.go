package data

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names. These match the edge schema exactly so an existing
// deployment can be pointed at without migration.
const (
	ColCameras    = "cameras"
	ColDetections = "detections"
	ColEvents     = "qualified_events"
	ColIncidents  = "incidents"
	ColAlerts     = "alerts"
	ColLogs       = "logs"
	ColAudit      = "audit_logs"
)

// Store is the shared document-store handle injected into every model.
type Store struct {
	Client  *mongo.Client
	DB      *mongo.Database
	Timeout time.Duration
}

// Connect dials the store, pings it, and ensures all indexes exist.
// Index creation failure is fatal: without the TTL indexes the retention
// guarantees silently stop holding.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout).
		SetTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("store connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("store ping: %w", err)
	}

	s := &Store{
		Client:  client,
		DB:      client.Database(database),
		Timeout: timeout,
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

// opCtx bounds a single store operation.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.Timeout)
}

// EnsureIndexes creates the per-collection index plan. TTL collections
// use expires_at with expireAfterSeconds 0 so each document carries its
// own deadline. The audit collection deliberately has no TTL.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ttl := func(field string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		}
	}
	unique := func(field string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
	}
	idx := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys}
	}

	plan := map[string][]mongo.IndexModel{
		ColCameras: {
			unique("camera_id"),
		},
		ColDetections: {
			unique("detection_id"),
			ttl("expires_at"),
			idx(bson.D{{Key: "camera_id", Value: 1}, {Key: "timestamp", Value: -1}}),
			idx(bson.D{{Key: "camera_id", Value: 1}, {Key: "object_class", Value: 1}, {Key: "timestamp", Value: -1}}),
		},
		ColEvents: {
			unique("event_id"),
			idx(bson.D{{Key: "escalated_to_incident", Value: 1}, {Key: "created_at", Value: 1}}),
		},
		ColIncidents: {
			unique("incident_id"),
			idx(bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}),
			idx(bson.D{{Key: "synced_to_central", Value: 1}}),
		},
		ColAlerts: {
			unique("alert_id"),
			ttl("expires_at"),
			idx(bson.D{{Key: "acknowledged", Value: 1}, {Key: "timestamp", Value: -1}}),
		},
		ColLogs: {
			ttl("expires_at"),
			idx(bson.D{{Key: "category", Value: 1}, {Key: "timestamp", Value: -1}}),
		},
		ColAudit: {
			unique("audit_id"),
			idx(bson.D{{Key: "target_id", Value: 1}, {Key: "timestamp", Value: -1}}),
		},
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	for col, models := range plan {
		if _, err := s.DB.Collection(col).Indexes().CreateMany(opCtx, models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", col, err)
		}
	}
	return nil
}
