package escalate

import (
	"context"
	"log"
	"time"

	"github.com/technosupport/ts-shield/internal/alerts"
	"github.com/technosupport/ts-shield/internal/data"
)

// The incident-creation sequence (incident, alert, audit entry) is not
// transactional: the incident may exist while its alert or audit entry
// does not. The sweep detects and repairs that window, and also picks
// up qualified events whose escalation was interrupted before the
// incident insert.

// StartSweeper runs RepairSweep every interval until ctx ends.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RepairSweep(ctx)
			}
		}
	}()
}

func (s *Service) RepairSweep(ctx context.Context) {
	s.sweepStalledEvents(ctx)
	s.sweepIncompleteIncidents(ctx)
}

func (s *Service) sweepStalledEvents(ctx context.Context) {
	events, err := s.Events.Unescalated(ctx, 50)
	if err != nil {
		log.Printf("Repair sweep: listing stalled events failed: %v", err)
		return
	}
	for i := range events {
		e := &events[i]
		// Skip events the qualifier only just produced; the normal
		// pipeline is probably still on them.
		if time.Since(e.CreatedAt) < 30*time.Second {
			continue
		}
		if _, err := s.Escalate(ctx, e); err != nil {
			log.Printf("Repair sweep: escalating stalled event %s failed: %v", e.EventID, err)
		} else {
			log.Printf("Repair sweep: escalated stalled event %s", e.EventID)
		}
	}
}

func (s *Service) sweepIncompleteIncidents(ctx context.Context) {
	open, err := s.Incidents.List(ctx, data.StatusOpen, 200)
	if err != nil {
		log.Printf("Repair sweep: listing open incidents failed: %v", err)
		return
	}
	for i := range open {
		inc := &open[i]
		if time.Since(inc.CreatedAt) < 30*time.Second {
			continue
		}

		hasAudit, err := s.Audit.ExistsForTarget(ctx, inc.IncidentID, ActionIncidentCreated)
		if err == nil && !hasAudit {
			log.Printf("Repair sweep: incident %s missing creation record, appending", inc.IncidentID)
			s.appendAudit(ctx, ActionIncidentCreated, inc.IncidentID, "repair-sweep",
				nil, map[string]string{"status": string(data.StatusOpen), "priority": string(inc.Priority)})
		}

		hasAlert, err := s.Alerts.ExistsForIncident(ctx, inc.IncidentID)
		if err == nil && !hasAlert {
			log.Printf("Repair sweep: incident %s missing alert, creating", inc.IncidentID)
			// Dedup identity is the incident itself here: the original
			// detection-keyed window has long passed.
			if _, err := s.Alerts.Create(ctx, &data.Alert{
				IncidentID: inc.IncidentID,
				Title:      inc.Title,
				Message:    inc.Summary,
				Priority:   alerts.PriorityFor(inc.Priority),
				Type:       inc.Type,
			}, inc.IncidentID); err != nil {
				log.Printf("Repair sweep: alert creation for %s failed: %v", inc.IncidentID, err)
			}
		}
	}
}
