package data

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AlertModel struct {
	Store *Store
}

func (m *AlertModel) Insert(ctx context.Context, a *Alert) error {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	_, err := m.Store.DB.Collection(ColAlerts).InsertOne(opCtx, a)
	return wrapStoreErr("alerts insert", err)
}

func (m *AlertModel) Get(ctx context.Context, alertID string) (*Alert, error) {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	var a Alert
	err := m.Store.DB.Collection(ColAlerts).
		FindOne(opCtx, bson.M{"alert_id": alertID}).Decode(&a)
	if err != nil {
		return nil, wrapStoreErr("alerts get", err)
	}
	return &a, nil
}

// Acknowledge is idempotent only in the filtered sense: a second call
// matches nothing and reports ErrNoTransition so the handler can answer
// with a conflict instead of silently rewriting the first actor.
func (m *AlertModel) Acknowledge(ctx context.Context, alertID, actorID string) error {
	now := nowUTC()
	filter := bson.M{
		"alert_id":     alertID,
		"acknowledged": false,
		"expires_at":   bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{
		"acknowledged":    true,
		"acknowledged_by": actorID,
		"acknowledged_at": now,
	}}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	res, err := m.Store.DB.Collection(ColAlerts).UpdateOne(opCtx, filter, update)
	if err != nil {
		return wrapStoreErr("alerts acknowledge", err)
	}
	if res.MatchedCount == 0 {
		return ErrNoTransition
	}
	return nil
}

// Active returns unexpired alerts, newest first.
func (m *AlertModel) Active(ctx context.Context, limit int64) ([]Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	cur, err := m.Store.DB.Collection(ColAlerts).Find(opCtx,
		bson.M{"expires_at": bson.M{"$gt": nowUTC()}},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, wrapStoreErr("alerts active", err)
	}
	var out []Alert
	if err := cur.All(opCtx, &out); err != nil {
		return nil, wrapStoreErr("alerts active decode", err)
	}
	return out, nil
}

// ActiveCount counts unexpired unacknowledged alerts for the dashboard.
func (m *AlertModel) ActiveCount(ctx context.Context) (int64, error) {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	n, err := m.Store.DB.Collection(ColAlerts).CountDocuments(opCtx, bson.M{
		"acknowledged": false,
		"expires_at":   bson.M{"$gt": nowUTC()},
	})
	if err != nil {
		return 0, wrapStoreErr("alerts active count", err)
	}
	return n, nil
}

// ExistsForIncident reports whether any alert references the incident.
// Used by the repair sweep after a partial escalation.
func (m *AlertModel) ExistsForIncident(ctx context.Context, incidentID string) (bool, error) {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	n, err := m.Store.DB.Collection(ColAlerts).CountDocuments(opCtx,
		bson.M{"incident_id": incidentID}, options.Count().SetLimit(1))
	if err != nil {
		return false, wrapStoreErr("alerts exists", err)
	}
	return n > 0, nil
}
