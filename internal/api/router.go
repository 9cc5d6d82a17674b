package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/ts-shield/internal/live"
	"github.com/technosupport/ts-shield/internal/metrics"
	"github.com/technosupport/ts-shield/internal/middleware"
	"github.com/technosupport/ts-shield/internal/ratelimit"
)

// Deps is everything the HTTP surface serves. Nil optional members
// (Hub, Frames, Metrics, Limiter) disable their routes.
type Deps struct {
	Detections *DetectionHandler
	Incidents  *IncidentHandler
	Alerts     *AlertHandler
	Cameras    *CameraHandler
	Stats      *StatsHandler
	Audit      *AuditHandler

	Hub     *live.Hub
	Metrics *metrics.Collector
	Limiter *ratelimit.Limiter

	IngestLimit ratelimit.LimitConfig
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORS)
	if d.Metrics != nil {
		r.Use(middleware.Instrument(d.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Detection ingress carries its own rate limit; everything else
		// is operator traffic.
		r.Group(func(r chi.Router) {
			if d.Limiter != nil && d.IngestLimit.Rate > 0 {
				r.Use(middleware.RateLimit(d.Limiter, d.IngestLimit))
			}
			r.Post("/detections", d.Detections.Ingest)
		})

		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", d.Incidents.List)
			r.Get("/unsynced", d.Incidents.Unsynced)
			r.Get("/{id}", d.Incidents.Get)
			r.Post("/{id}/acknowledge", d.Incidents.Acknowledge)
			r.Post("/{id}/resolve", d.Incidents.Resolve)
			r.Post("/{id}/mark-synced", d.Incidents.MarkSynced)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", d.Alerts.Active)
			r.Post("/{id}/acknowledge", d.Alerts.Acknowledge)
		})

		r.Route("/cameras", func(r chi.Router) {
			r.Post("/", d.Cameras.Register)
			r.Get("/", d.Cameras.List)
			r.Get("/{id}", d.Cameras.Get)
			r.Post("/{id}/heartbeat", d.Cameras.Heartbeat)
			r.Get("/{id}/frames/latest", d.Cameras.LatestFrame)
		})

		r.Get("/stats", d.Stats.Get)
		r.Get("/logs", d.Stats.RecentLogs)

		r.Get("/audit", d.Audit.GetEntries)
		r.Get("/audit/verify", d.Audit.Verify)

		if d.Hub != nil {
			r.Get("/live/ws", d.Hub.ServeWS)
		}
	})

	return r
}
