package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type IncidentModel struct {
	Store *Store
}

func (m *IncidentModel) Insert(ctx context.Context, inc *Incident) error {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	_, err := m.Store.DB.Collection(ColIncidents).InsertOne(opCtx, inc)
	return wrapStoreErr("incidents insert", err)
}

func (m *IncidentModel) Get(ctx context.Context, incidentID string) (*Incident, error) {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	var inc Incident
	err := m.Store.DB.Collection(ColIncidents).
		FindOne(opCtx, bson.M{"incident_id": incidentID}).Decode(&inc)
	if err != nil {
		return nil, wrapStoreErr("incidents get", err)
	}
	return &inc, nil
}

// Acknowledge moves open -> investigating. The status filter makes the
// transition conditional: if the incident is already investigating or
// resolved the update matches nothing and ErrNoTransition comes back.
// The caller re-reads to distinguish a lost race from an illegal move.
func (m *IncidentModel) Acknowledge(ctx context.Context, incidentID, actorID string) error {
	now := nowUTC()
	filter := bson.M{
		"incident_id": incidentID,
		"status":      StatusOpen,
	}
	update := bson.M{"$set": bson.M{
		"status":          StatusInvestigating,
		"acknowledged":    true,
		"acknowledged_by": actorID,
		"acknowledged_at": now,
		"updated_at":      now,
	}}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	res, err := m.Store.DB.Collection(ColIncidents).UpdateOne(opCtx, filter, update)
	if err != nil {
		return wrapStoreErr("incidents acknowledge", err)
	}
	if res.MatchedCount == 0 {
		return ErrNoTransition
	}
	return nil
}

// Resolve moves open or investigating -> resolved. Resolving straight
// from open is allowed; it is the operator saying the incident needs no
// investigation. Returns the pre-image so the caller records which
// status the incident actually left, even under a concurrent
// acknowledge. The resolver lands in resolved_by; acknowledged_by stays
// whoever acknowledged.
func (m *IncidentModel) Resolve(ctx context.Context, incidentID, actorID, notes string) (*Incident, error) {
	now := nowUTC()
	filter := bson.M{
		"incident_id": incidentID,
		"status":      bson.M{"$in": bson.A{StatusOpen, StatusInvestigating}},
	}
	update := bson.M{"$set": bson.M{
		"status":           StatusResolved,
		"resolved_at":      now,
		"resolved_by":      actorID,
		"resolution_notes": notes,
		"updated_at":       now,
	}}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	var before Incident
	err := m.Store.DB.Collection(ColIncidents).
		FindOneAndUpdate(opCtx, filter, update,
			options.FindOneAndUpdate().SetReturnDocument(options.Before)).
		Decode(&before)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNoTransition
	}
	if err != nil {
		return nil, wrapStoreErr("incidents resolve", err)
	}
	return &before, nil
}

// MarkSynced records that the central gateway has confirmed receipt.
// Idempotent: re-marking a synced incident matches and rewrites the
// same flag, which is harmless.
func (m *IncidentModel) MarkSynced(ctx context.Context, incidentID string) error {
	now := nowUTC()
	update := bson.M{"$set": bson.M{
		"synced_to_central": true,
		"sync_timestamp":    now,
		"updated_at":        now,
	}}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	res, err := m.Store.DB.Collection(ColIncidents).UpdateOne(opCtx,
		bson.M{"incident_id": incidentID}, update)
	if err != nil {
		return wrapStoreErr("incidents mark synced", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Unsynced returns incidents awaiting central upload, oldest first.
func (m *IncidentModel) Unsynced(ctx context.Context, limit int64) ([]Incident, error) {
	if limit <= 0 {
		limit = 100
	}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	cur, err := m.Store.DB.Collection(ColIncidents).Find(opCtx,
		bson.M{"synced_to_central": false},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(limit))
	if err != nil {
		return nil, wrapStoreErr("incidents unsynced", err)
	}
	var out []Incident
	if err := cur.All(opCtx, &out); err != nil {
		return nil, wrapStoreErr("incidents unsynced decode", err)
	}
	return out, nil
}

// List returns incidents newest first, optionally filtered by status.
func (m *IncidentModel) List(ctx context.Context, status IncidentStatus, limit int64) ([]Incident, error) {
	if limit <= 0 {
		limit = 100
	}
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	cur, err := m.Store.DB.Collection(ColIncidents).Find(opCtx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, wrapStoreErr("incidents list", err)
	}
	var out []Incident
	if err := cur.All(opCtx, &out); err != nil {
		return nil, wrapStoreErr("incidents list decode", err)
	}
	return out, nil
}

// ActiveByPriority counts unresolved incidents grouped by priority.
func (m *IncidentModel) ActiveByPriority(ctx context.Context) (map[IncidentPriority]int64, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"status": bson.M{"$ne": StatusResolved}}},
		{"$group": bson.M{"_id": "$priority", "count": bson.M{"$sum": 1}}},
	}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	cur, err := m.Store.DB.Collection(ColIncidents).Aggregate(opCtx, pipeline)
	if err != nil {
		return nil, wrapStoreErr("incidents active by priority", err)
	}
	var rows []struct {
		Priority IncidentPriority `bson:"_id"`
		Count    int64            `bson:"count"`
	}
	if err := cur.All(opCtx, &rows); err != nil {
		return nil, wrapStoreErr("incidents active by priority decode", err)
	}
	out := make(map[IncidentPriority]int64, len(rows))
	for _, r := range rows {
		out[r.Priority] = r.Count
	}
	return out, nil
}

// CountSince counts incidents created at or after the cutoff.
func (m *IncidentModel) CountSince(ctx context.Context, cutoff time.Time) (int64, error) {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	n, err := m.Store.DB.Collection(ColIncidents).CountDocuments(opCtx,
		bson.M{"created_at": bson.M{"$gte": cutoff}})
	if err != nil {
		return 0, wrapStoreErr("incidents count since", err)
	}
	return n, nil
}
