package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/technosupport/ts-shield/internal/alerts"
	"github.com/technosupport/ts-shield/internal/api"
	"github.com/technosupport/ts-shield/internal/audit"
	"github.com/technosupport/ts-shield/internal/cameras"
	"github.com/technosupport/ts-shield/internal/config"
	"github.com/technosupport/ts-shield/internal/dashboard"
	"github.com/technosupport/ts-shield/internal/data"
	"github.com/technosupport/ts-shield/internal/escalate"
	"github.com/technosupport/ts-shield/internal/ingest"
	"github.com/technosupport/ts-shield/internal/live"
	"github.com/technosupport/ts-shield/internal/metrics"
	"github.com/technosupport/ts-shield/internal/pipeline"
	"github.com/technosupport/ts-shield/internal/qualify"
	"github.com/technosupport/ts-shield/internal/ratelimit"
)

func main() {
	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config/default.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	log.Printf("Starting shield station %s", cfg.StationID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Document store. Index creation is part of Connect; without the
	// TTL indexes the retention guarantees silently stop holding.
	store, err := data.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout.Std())
	if err != nil {
		log.Fatalf("Mongo error: %v", err)
	}
	defer store.Close(context.Background())

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()

	detections := &data.DetectionModel{Store: store}
	camerasModel := &data.CameraModel{Store: store}
	events := &data.EventModel{Store: store}
	incidents := &data.IncidentModel{Store: store}
	alertsModel := &data.AlertModel{Store: store}
	logs := &data.LogModel{Store: store}
	auditModel := &data.AuditModel{Store: store}

	collector := metrics.NewCollector()

	// Live layer: websocket hub plus latest-frame cache.
	hub := live.NewHub()
	hub.Clients = collector.LiveClients
	go hub.Run()
	frames := live.NewFrameCache(rdb)

	// Audit trail with disk failover.
	spool, err := audit.NewSpool(cfg.Audit.SpoolDir, cfg.Audit.SpoolMaxMB)
	if err != nil {
		log.Fatalf("Audit spool error: %v", err)
	}
	auditSvc := audit.NewService(auditModel, spool)
	auditSvc.Spooled = collector.AuditSpooled
	auditSvc.StartReplayer(ctx, 30*time.Second)

	// Escalation chain.
	dedup := alerts.NewCreationDeduper(rdb)
	alertSvc := alerts.NewService(alertsModel, dedup, hub, cfg.StationID)
	alertSvc.Created = collector.AlertsCreated

	rule, err := qualify.LoadRule(cfg.Qualifier.RuleFile)
	if err != nil {
		log.Printf("Qualifier rule file rejected, using defaults: %v", err)
		rule = qualify.DefaultRule()
	}
	qualSvc := qualify.NewService(events, detections, rule)
	qualSvc.StartRuleWatcher(ctx, cfg.Qualifier.RuleFile)

	escSvc := escalate.NewService(incidents, events, alertSvc, auditSvc, logs, cfg.StationID)
	escSvc.Suppress = dedup
	escSvc.Suppressed = collector.AlertsSuppressed
	escSvc.Transitions = collector.Transitions
	escSvc.StartSweeper(ctx, time.Minute)

	ingSvc := ingest.NewService(detections, camerasModel, logs, 5*time.Second)
	pipe := pipeline.New(ingSvc, qualSvc, escSvc, collector)

	// Camera registry lifecycle.
	camSvc := cameras.NewService(camerasModel, cfg.Cameras.StaleAfter.Std())
	camSvc.StartMonitor(ctx, cfg.Cameras.MonitorInterval.Std())
	camSvc.StartDailyReset(ctx)

	dashSvc := dashboard.NewService(camerasModel, incidents, alertsModel)

	// NATS frame stream from the inference collaborator. Optional: the
	// HTTP ingress alone still carries the pipeline.
	var consumer *live.Consumer
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("shield-"+cfg.StationID))
	if err != nil {
		log.Printf("NATS unavailable, frame stream disabled: %v", err)
	} else {
		defer nc.Close()
		consumer = &live.Consumer{
			Conn:    nc,
			Subject: cfg.NATS.Subject,
			Hub:     hub,
			Cache:   frames,
			Sink:    pipe.FrameSink,
			Timeout: 5 * time.Second,
		}
		if err := consumer.Start(); err != nil {
			log.Printf("NATS subscribe failed, frame stream disabled: %v", err)
			consumer = nil
		}
	}

	router := api.NewRouter(api.Deps{
		Detections:  api.NewDetectionHandler(pipe),
		Incidents:   api.NewIncidentHandler(escSvc),
		Alerts:      api.NewAlertHandler(alertSvc),
		Cameras:     api.NewCameraHandler(camSvc, frames),
		Stats:       api.NewStatsHandler(dashSvc, logs),
		Audit:       api.NewAuditHandler(auditSvc),
		Hub:         hub,
		Metrics:     collector,
		Limiter:     ratelimit.NewLimiter(rdb),
		IngestLimit: cfg.RateLimit.Ingest.LimitConfig(),
	})

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Listening on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutdown requested")

	if consumer != nil {
		consumer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown error: %v", err)
	}
	log.Printf("Server stopped")
}
