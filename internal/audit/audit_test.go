package audit_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-shield/internal/audit"
	"github.com/technosupport/ts-shield/internal/data"
)

type MockRepo struct {
	Entries  []data.AuditEntry
	FailWith error
	Inserts  int
}

func (m *MockRepo) Insert(ctx context.Context, e *data.AuditEntry) error {
	m.Inserts++
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Entries = append(m.Entries, *e)
	return nil
}
func (m *MockRepo) Recent(ctx context.Context, limit int64) ([]data.AuditEntry, error) {
	return m.Entries, nil
}
func (m *MockRepo) ByTarget(ctx context.Context, targetID string) ([]data.AuditEntry, error) {
	var out []data.AuditEntry
	for _, e := range m.Entries {
		if e.TargetID == targetID {
			out = append(out, e)
		}
	}
	return out, nil
}
func (m *MockRepo) ExistsForTarget(ctx context.Context, targetID, action string) (bool, error) {
	for _, e := range m.Entries {
		if e.TargetID == targetID && e.Action == action {
			return true, nil
		}
	}
	return false, nil
}

func TestAppend_ChecksumVerifies(t *testing.T) {
	repo := &MockRepo{}
	svc := audit.NewService(repo, nil)

	e, err := svc.Append(context.Background(), "INCIDENT_CREATED", "incident", "INC_1", "system",
		nil, map[string]string{"status": "open"})
	require.NoError(t, err)
	require.Len(t, repo.Entries, 1)

	assert.True(t, audit.Verify(e))
	assert.True(t, strings.HasPrefix(e.AuditID, "AUD_"))
	assert.Len(t, e.Checksum, 64)
}

func TestVerify_DetectsTampering(t *testing.T) {
	repo := &MockRepo{}
	svc := audit.NewService(repo, nil)

	e, err := svc.Append(context.Background(), "INCIDENT_RESOLVED", "incident", "INC_2", "op-7",
		map[string]string{"status": "investigating"}, map[string]string{"status": "resolved"})
	require.NoError(t, err)
	require.True(t, audit.Verify(e))

	// Tamper with the stored copy.
	repo.Entries[0].ActorID = "someone-else"

	bad, err := svc.VerifyRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, bad, 1)
	assert.Equal(t, e.AuditID, bad[0].AuditID)
	assert.NotEqual(t, bad[0].Expected, bad[0].Stored)
}

func TestChecksum_StableAcrossRecompute(t *testing.T) {
	e := &data.AuditEntry{
		AuditID:    "AUD_1_abc",
		Action:     "INCIDENT_ACKNOWLEDGED",
		ActorID:    "op-1",
		TargetType: "incident",
		TargetID:   "INC_9",
		PreviousState: map[string]string{
			"status": "open",
		},
		NewState: map[string]string{
			"status": "investigating",
		},
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	a, err := audit.Checksum(e)
	require.NoError(t, err)
	b, err := audit.Checksum(e)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAppend_RetriesOnUnavailable(t *testing.T) {
	repo := &MockRepo{FailWith: data.ErrUnavailable}
	dir := t.TempDir()
	spool, err := audit.NewSpool(dir, 1)
	require.NoError(t, err)

	svc := audit.NewService(repo, spool)
	svc.BaseBackoff = time.Millisecond

	_, err = svc.Append(context.Background(), "INCIDENT_CREATED", "incident", "INC_3", "system",
		nil, map[string]string{"status": "open"})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.Inserts)

	// Entry landed on disk instead.
	b, err := os.ReadFile(filepath.Join(dir, "audit_spool.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "INC_3")
}

func TestReplaySpool_FlushesWhenStoreRecovers(t *testing.T) {
	repo := &MockRepo{FailWith: data.ErrUnavailable}
	spool, err := audit.NewSpool(t.TempDir(), 1)
	require.NoError(t, err)

	svc := audit.NewService(repo, spool)
	svc.BaseBackoff = time.Millisecond

	_, err = svc.Append(context.Background(), "INCIDENT_CREATED", "incident", "INC_4", "system", nil, nil)
	require.NoError(t, err)
	require.Empty(t, repo.Entries)

	// Store comes back.
	repo.FailWith = nil
	svc.ReplaySpool(context.Background())

	require.Len(t, repo.Entries, 1)
	assert.Equal(t, "INC_4", repo.Entries[0].TargetID)
	assert.True(t, audit.Verify(&repo.Entries[0]))
}

func TestAppend_DoesNotRetryNonStoreErrors(t *testing.T) {
	repo := &MockRepo{FailWith: errors.New("duplicate key")}
	svc := audit.NewService(repo, nil)
	svc.BaseBackoff = time.Millisecond

	_, err := svc.Append(context.Background(), "X", "incident", "INC_5", "system", nil, nil)
	require.Error(t, err)
	assert.Equal(t, 1, repo.Inserts)
}
