package api

import (
	"net/http"

	"github.com/technosupport/ts-shield/internal/audit"
	"github.com/technosupport/ts-shield/internal/data"
)

type AuditHandler struct {
	Service *audit.Service
}

func NewAuditHandler(svc *audit.Service) *AuditHandler {
	return &AuditHandler{Service: svc}
}

// GET /api/v1/audit?target_id=INC_...&limit=100
func (h *AuditHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	var (
		items []data.AuditEntry
		err   error
	)
	if target := r.URL.Query().Get("target_id"); target != "" {
		items, err = h.Service.Trail(r.Context(), target)
	} else {
		items, err = h.Service.Recent(r.Context(), parseLimit(r, 100))
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if items == nil {
		items = []data.AuditEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": items, "count": len(items)})
}

// GET /api/v1/audit/verify?limit=500
//
// Re-checksums the newest entries. Mismatches are reported, never
// repaired; the response is the integrity report.
func (h *AuditHandler) Verify(w http.ResponseWriter, r *http.Request) {
	bad, err := h.Service.VerifyRecent(r.Context(), parseLimit(r, 500))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	type mismatch struct {
		AuditID  string `json:"audit_id"`
		Expected string `json:"expected"`
		Stored   string `json:"stored"`
	}
	out := make([]mismatch, 0, len(bad))
	for _, b := range bad {
		out = append(out, mismatch{AuditID: b.AuditID, Expected: b.Expected, Stored: b.Stored})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"intact":     len(out) == 0,
		"mismatches": out,
	})
}
