package api

import (
	"context"
	"net/http"

	"github.com/technosupport/ts-shield/internal/dashboard"
	"github.com/technosupport/ts-shield/internal/data"
)

// LogReader is the slice of the operational log the API serves.
type LogReader interface {
	Recent(ctx context.Context, category string, limit int64) ([]data.LogEntry, error)
}

type StatsHandler struct {
	Dashboard *dashboard.Service
	Logs      LogReader
}

func NewStatsHandler(dash *dashboard.Service, logs LogReader) *StatsHandler {
	return &StatsHandler{Dashboard: dash, Logs: logs}
}

// GET /api/v1/stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Dashboard.GetStats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GET /api/v1/logs?category=INCIDENT&limit=100
func (h *StatsHandler) RecentLogs(w http.ResponseWriter, r *http.Request) {
	items, err := h.Logs.Recent(r.Context(), r.URL.Query().Get("category"), parseLimit(r, 100))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if items == nil {
		items = []data.LogEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"logs": items, "count": len(items)})
}
