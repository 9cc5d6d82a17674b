package data

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LogModel struct {
	Store *Store
}

// Insert writes one operational log record. Fills ID, timestamps and the
// 7 day expiry when the caller leaves them zero.
func (m *LogModel) Insert(ctx context.Context, e *LogEntry) error {
	if e.LogID == "" {
		e.LogID = NewID(PrefixLog)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = nowUTC()
	}
	if e.ExpiresAt.IsZero() {
		e.ExpiresAt = e.Timestamp.Add(LogTTL)
	}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	_, err := m.Store.DB.Collection(ColLogs).InsertOne(opCtx, e)
	return wrapStoreErr("logs insert", err)
}

// Recent returns log records newest first, optionally filtered by
// category.
func (m *LogModel) Recent(ctx context.Context, category string, limit int64) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	filter := bson.M{"expires_at": bson.M{"$gt": nowUTC()}}
	if category != "" {
		filter["category"] = category
	}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	cur, err := m.Store.DB.Collection(ColLogs).Find(opCtx, filter,
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, wrapStoreErr("logs recent", err)
	}
	var out []LogEntry
	if err := cur.All(opCtx, &out); err != nil {
		return nil, wrapStoreErr("logs recent decode", err)
	}
	return out, nil
}
