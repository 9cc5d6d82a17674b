package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CameraModel struct {
	Store *Store
}

// Upsert registers or updates a camera. Counters are only seeded on
// insert; an update never touches them.
func (m *CameraModel) Upsert(ctx context.Context, c *Camera) error {
	now := nowUTC()
	set := bson.M{
		"name":       c.Name,
		"zone":       c.Zone,
		"position":   c.Position,
		"updated_at": now,
	}
	if c.Status != "" {
		set["status"] = c.Status
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"created_at": now,
			"counters":   CameraCounters{},
		},
	}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	_, err := m.Store.DB.Collection(ColCameras).UpdateOne(opCtx,
		bson.M{"camera_id": c.CameraID}, update, options.Update().SetUpsert(true))
	return wrapStoreErr("cameras upsert", err)
}

// IncrementCounters bumps the per-camera tallies for one accepted
// detection in a single atomic update. A detection from an unregistered
// camera still counts: the upsert creates a placeholder record so no
// tally is ever lost to registration ordering.
func (m *CameraModel) IncrementCounters(ctx context.Context, cameraID string, class ObjectClass, threat ThreatLevel) error {
	inc := bson.M{"counters.total_detections": 1}
	switch class {
	case ClassPerson:
		inc["counters.persons"] = 1
	case ClassVehicle:
		inc["counters.vehicles"] = 1
	}
	if threat == ThreatSuspicious || threat == ThreatCritical {
		inc["counters.threats"] = 1
		inc["counters.today_threats"] = 1
	}
	update := bson.M{
		"$inc": inc,
		"$set": bson.M{"updated_at": nowUTC()},
		"$setOnInsert": bson.M{
			"created_at": nowUTC(),
			"status":     CameraOffline,
		},
	}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	_, err := m.Store.DB.Collection(ColCameras).UpdateOne(opCtx,
		bson.M{"camera_id": cameraID}, update, options.Update().SetUpsert(true))
	return wrapStoreErr("cameras increment", err)
}

// UpdateHealth records a heartbeat and flips the camera LIVE.
func (m *CameraModel) UpdateHealth(ctx context.Context, cameraID string, h CameraHealth) error {
	h.LastHeartbeat = nowUTC()
	update := bson.M{"$set": bson.M{
		"health":     h,
		"status":     CameraLive,
		"updated_at": nowUTC(),
	}}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	res, err := m.Store.DB.Collection(ColCameras).UpdateOne(opCtx,
		bson.M{"camera_id": cameraID}, update)
	if err != nil {
		return wrapStoreErr("cameras health", err)
	}
	if res.MatchedCount == 0 {
		return wrapStoreErr("cameras health", mongo.ErrNoDocuments)
	}
	return nil
}

// MarkStaleOffline flips LIVE cameras whose last heartbeat is older than
// staleAfter to OFFLINE. Returns how many were flipped.
func (m *CameraModel) MarkStaleOffline(ctx context.Context, staleAfter time.Duration) (int64, error) {
	cutoff := nowUTC().Add(-staleAfter)
	filter := bson.M{
		"status":                CameraLive,
		"health.last_heartbeat": bson.M{"$lt": cutoff},
	}
	update := bson.M{"$set": bson.M{
		"status":     CameraOffline,
		"updated_at": nowUTC(),
	}}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	res, err := m.Store.DB.Collection(ColCameras).UpdateMany(opCtx, filter, update)
	if err != nil {
		return 0, wrapStoreErr("cameras stale sweep", err)
	}
	return res.ModifiedCount, nil
}

// ResetTodayThreats zeroes the daily threat tally on every camera.
// Scheduled at local midnight; lifetime counters are untouched.
func (m *CameraModel) ResetTodayThreats(ctx context.Context) (int64, error) {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	res, err := m.Store.DB.Collection(ColCameras).UpdateMany(opCtx,
		bson.M{},
		bson.M{"$set": bson.M{"counters.today_threats": 0, "updated_at": nowUTC()}})
	if err != nil {
		return 0, wrapStoreErr("cameras daily reset", err)
	}
	return res.ModifiedCount, nil
}

func (m *CameraModel) Get(ctx context.Context, cameraID string) (*Camera, error) {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	var c Camera
	err := m.Store.DB.Collection(ColCameras).
		FindOne(opCtx, bson.M{"camera_id": cameraID}).Decode(&c)
	if err != nil {
		return nil, wrapStoreErr("cameras get", err)
	}
	return &c, nil
}

func (m *CameraModel) All(ctx context.Context) ([]Camera, error) {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	cur, err := m.Store.DB.Collection(ColCameras).Find(opCtx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "camera_id", Value: 1}}))
	if err != nil {
		return nil, wrapStoreErr("cameras all", err)
	}
	var out []Camera
	if err := cur.All(opCtx, &out); err != nil {
		return nil, wrapStoreErr("cameras all decode", err)
	}
	return out, nil
}

// CameraAggregate is the fleet rollup feeding the dashboard snapshot.
type CameraAggregate struct {
	Total           int64 `bson:"total"`
	Online          int64 `bson:"online"`
	ThreatsToday    int64 `bson:"threats_today"`
	TotalDetections int64 `bson:"total_detections"`
}

// Aggregate computes the fleet rollup in one server-side pass.
func (m *CameraModel) Aggregate(ctx context.Context) (*CameraAggregate, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": 1},
			"online": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$status", CameraLive}}, 1, 0},
			}},
			"threats_today":    bson.M{"$sum": "$counters.today_threats"},
			"total_detections": bson.M{"$sum": "$counters.total_detections"},
		}}},
	}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	cur, err := m.Store.DB.Collection(ColCameras).Aggregate(opCtx, pipeline)
	if err != nil {
		return nil, wrapStoreErr("cameras aggregate", err)
	}
	var rows []CameraAggregate
	if err := cur.All(opCtx, &rows); err != nil {
		return nil, wrapStoreErr("cameras aggregate decode", err)
	}
	if len(rows) == 0 {
		return &CameraAggregate{}, nil
	}
	return &rows[0], nil
}
