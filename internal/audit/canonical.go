package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/technosupport/ts-shield/internal/data"
)

// canonicalPayload is the exact content the checksum covers: every field
// except the checksum itself, timestamps rendered RFC3339Nano UTC. The
// map form matters: encoding/json sorts map keys at every level, which
// gives a stable byte stream regardless of struct field order. Changing
// this breaks verification of every existing entry.
func canonicalPayload(e *data.AuditEntry) map[string]any {
	m := map[string]any{
		"audit_id":    e.AuditID,
		"action":      e.Action,
		"actor_id":    e.ActorID,
		"target_type": e.TargetType,
		"target_id":   e.TargetID,
		"timestamp":   e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if len(e.PreviousState) > 0 {
		m["previous_state"] = e.PreviousState
	}
	if len(e.NewState) > 0 {
		m["new_state"] = e.NewState
	}
	return m
}

// Checksum computes the SHA-256 hex digest of the canonical form.
func Checksum(e *data.AuditEntry) (string, error) {
	b, err := json.Marshal(canonicalPayload(e))
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the checksum and compares. A false result is
// reported, never repaired.
func Verify(e *data.AuditEntry) bool {
	want, err := Checksum(e)
	if err != nil {
		return false
	}
	return want == e.Checksum
}
