package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DetectionModel struct {
	Store *Store
}

func (m *DetectionModel) Insert(ctx context.Context, d *Detection) error {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	_, err := m.Store.DB.Collection(ColDetections).InsertOne(opCtx, d)
	return wrapStoreErr("detections insert", err)
}

// Recent returns the newest active detections for a camera. The TTL
// monitor only sweeps periodically, so the expiry filter is applied here
// too: a document past its deadline is never returned even if the sweep
// has not yet collected it.
func (m *DetectionModel) Recent(ctx context.Context, cameraID string, limit int64) ([]Detection, error) {
	if limit <= 0 {
		limit = 100
	}
	filter := bson.M{
		"camera_id":  cameraID,
		"expires_at": bson.M{"$gt": nowUTC()},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	cur, err := m.Store.DB.Collection(ColDetections).Find(opCtx, filter, opts)
	if err != nil {
		return nil, wrapStoreErr("detections recent", err)
	}
	var out []Detection
	if err := cur.All(opCtx, &out); err != nil {
		return nil, wrapStoreErr("detections recent decode", err)
	}
	return out, nil
}

func (m *DetectionModel) Get(ctx context.Context, detectionID string) (*Detection, error) {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	var d Detection
	err := m.Store.DB.Collection(ColDetections).
		FindOne(opCtx, bson.M{"detection_id": detectionID}).Decode(&d)
	if err != nil {
		return nil, wrapStoreErr("detections get", err)
	}
	return &d, nil
}

// CountSince counts detections for one camera and object class newer than
// the cutoff. Used by the repeat-occurrence qualification rule.
func (m *DetectionModel) CountSince(ctx context.Context, cameraID string, class ObjectClass, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"camera_id":    cameraID,
		"object_class": class,
		"timestamp":    bson.M{"$gte": cutoff},
		"expires_at":   bson.M{"$gt": nowUTC()},
	}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	n, err := m.Store.DB.Collection(ColDetections).CountDocuments(opCtx, filter)
	if err != nil {
		return 0, wrapStoreErr("detections count", err)
	}
	return n, nil
}
