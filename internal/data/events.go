package data

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type EventModel struct {
	Store *Store
}

func (m *EventModel) Insert(ctx context.Context, e *QualifiedEvent) error {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	_, err := m.Store.DB.Collection(ColEvents).InsertOne(opCtx, e)
	return wrapStoreErr("events insert", err)
}

func (m *EventModel) Get(ctx context.Context, eventID string) (*QualifiedEvent, error) {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	var e QualifiedEvent
	err := m.Store.DB.Collection(ColEvents).
		FindOne(opCtx, bson.M{"event_id": eventID}).Decode(&e)
	if err != nil {
		return nil, wrapStoreErr("events get", err)
	}
	return &e, nil
}

// MarkEscalated flips escalated_to_incident exactly once. The false
// filter makes the flip act as a claim: concurrent escalators race on
// it and exactly one wins, the rest get ErrNoTransition.
func (m *EventModel) MarkEscalated(ctx context.Context, eventID string) error {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	res, err := m.Store.DB.Collection(ColEvents).UpdateOne(opCtx,
		bson.M{"event_id": eventID, "escalated_to_incident": false},
		bson.M{"$set": bson.M{"escalated_to_incident": true}})
	if err != nil {
		return wrapStoreErr("events mark escalated", err)
	}
	if res.MatchedCount == 0 {
		return ErrNoTransition
	}
	return nil
}

// UnmarkEscalated releases the claim taken by MarkEscalated. Used when
// the incident insert fails after the claim was won, so the repair
// sweep can pick the event up again. Idempotent: releasing an already
// released event matches nothing and is fine.
func (m *EventModel) UnmarkEscalated(ctx context.Context, eventID string) error {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	_, err := m.Store.DB.Collection(ColEvents).UpdateOne(opCtx,
		bson.M{"event_id": eventID, "escalated_to_incident": true},
		bson.M{"$set": bson.M{"escalated_to_incident": false}})
	return wrapStoreErr("events unmark escalated", err)
}

// Unescalated returns events awaiting escalation, oldest first. Used by
// the repair sweep to pick up events whose escalation was interrupted.
func (m *EventModel) Unescalated(ctx context.Context, limit int64) ([]QualifiedEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	cur, err := m.Store.DB.Collection(ColEvents).Find(opCtx,
		bson.M{"escalated_to_incident": false},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(limit))
	if err != nil {
		return nil, wrapStoreErr("events unescalated", err)
	}
	var out []QualifiedEvent
	if err := cur.All(opCtx, &out); err != nil {
		return nil, wrapStoreErr("events unescalated decode", err)
	}
	return out, nil
}

func (m *EventModel) Recent(ctx context.Context, limit int64) ([]QualifiedEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	cur, err := m.Store.DB.Collection(ColEvents).Find(opCtx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, wrapStoreErr("events recent", err)
	}
	var out []QualifiedEvent
	if err := cur.All(opCtx, &out); err != nil {
		return nil, wrapStoreErr("events recent decode", err)
	}
	return out, nil
}
