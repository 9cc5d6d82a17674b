package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditEntry is one record in the permanent tamper-evident trail. The
// checksum covers every other field; see the audit package for the
// canonical form it is computed over. No TTL, ever.
type AuditEntry struct {
	AuditID       string            `bson:"audit_id" json:"audit_id"`
	Action        string            `bson:"action" json:"action"`
	ActorID       string            `bson:"actor_id" json:"actor_id"`
	TargetType    string            `bson:"target_type" json:"target_type"`
	TargetID      string            `bson:"target_id" json:"target_id"`
	PreviousState map[string]string `bson:"previous_state,omitempty" json:"previous_state,omitempty"`
	NewState      map[string]string `bson:"new_state,omitempty" json:"new_state,omitempty"`
	Timestamp     time.Time         `bson:"timestamp" json:"timestamp"`
	Checksum      string            `bson:"checksum" json:"checksum"`
}

type AuditModel struct {
	Store *Store
}

func (m *AuditModel) Insert(ctx context.Context, e *AuditEntry) error {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	_, err := m.Store.DB.Collection(ColAudit).InsertOne(opCtx, e)
	return wrapStoreErr("audit insert", err)
}

func (m *AuditModel) Recent(ctx context.Context, limit int64) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	cur, err := m.Store.DB.Collection(ColAudit).Find(opCtx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, wrapStoreErr("audit recent", err)
	}
	var out []AuditEntry
	if err := cur.All(opCtx, &out); err != nil {
		return nil, wrapStoreErr("audit recent decode", err)
	}
	return out, nil
}

func (m *AuditModel) ByTarget(ctx context.Context, targetID string) ([]AuditEntry, error) {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	cur, err := m.Store.DB.Collection(ColAudit).Find(opCtx,
		bson.M{"target_id": targetID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, wrapStoreErr("audit by target", err)
	}
	var out []AuditEntry
	if err := cur.All(opCtx, &out); err != nil {
		return nil, wrapStoreErr("audit by target decode", err)
	}
	return out, nil
}

// ExistsForTarget reports whether any entry with the given action exists
// for the target. The repair sweep uses it to detect an incident created
// without its creation record.
func (m *AuditModel) ExistsForTarget(ctx context.Context, targetID, action string) (bool, error) {
	opCtx, cancel := m.Store.opCtx(ctx)
	defer cancel()
	n, err := m.Store.DB.Collection(ColAudit).CountDocuments(opCtx,
		bson.M{"target_id": targetID, "action": action},
		options.Count().SetLimit(1))
	if err != nil {
		return false, wrapStoreErr("audit exists", err)
	}
	return n > 0, nil
}
