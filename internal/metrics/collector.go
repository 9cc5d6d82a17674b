package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the pipeline counters on a private registry, so a
// second instance in tests never trips duplicate registration.
type Collector struct {
	registry *prometheus.Registry

	DetectionsIngested *prometheus.CounterVec
	DetectionsDropped  prometheus.Counter
	EventsQualified    prometheus.Counter
	IncidentsCreated   *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
	AlertsCreated      prometheus.Counter
	AlertsSuppressed   prometheus.Counter
	AuditSpooled       prometheus.Counter
	LiveClients        prometheus.Gauge
	HTTPRequests       *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{registry: reg}

	c.DetectionsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shield_detections_ingested_total",
		Help: "Detections accepted and persisted, by object class",
	}, []string{"object_class"})
	reg.MustRegister(c.DetectionsIngested)

	c.DetectionsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shield_detections_dropped_total",
		Help: "Detections dropped at the ingest edge (validation or store outage)",
	})
	reg.MustRegister(c.DetectionsDropped)

	c.EventsQualified = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shield_events_qualified_total",
		Help: "Detections that passed the qualification rule",
	})
	reg.MustRegister(c.EventsQualified)

	c.IncidentsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shield_incidents_created_total",
		Help: "Incidents opened, by priority",
	}, []string{"priority"})
	reg.MustRegister(c.IncidentsCreated)

	c.Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shield_incident_transitions_total",
		Help: "Incident status transitions, by action and outcome",
	}, []string{"action", "outcome"})
	reg.MustRegister(c.Transitions)

	c.AlertsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shield_alerts_created_total",
		Help: "Alerts persisted and pushed",
	})
	reg.MustRegister(c.AlertsCreated)

	c.AlertsSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shield_alerts_suppressed_total",
		Help: "Alerts suppressed by the creation-time window",
	})
	reg.MustRegister(c.AlertsSuppressed)

	c.AuditSpooled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shield_audit_spooled_total",
		Help: "Audit entries diverted to the disk spool",
	})
	reg.MustRegister(c.AuditSpooled)

	c.LiveClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shield_live_clients",
		Help: "Connected websocket subscribers",
	})
	reg.MustRegister(c.LiveClients)

	c.HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shield_http_requests_total",
		Help: "HTTP requests, by route and status class",
	}, []string{"route", "status"})
	reg.MustRegister(c.HTTPRequests)

	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
