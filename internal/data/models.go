package data

import (
	"time"
)

// Object classes the inference collaborator is allowed to report.
type ObjectClass string

const (
	ClassPerson  ObjectClass = "person"
	ClassVehicle ObjectClass = "vehicle"
	ClassOther   ObjectClass = "other"
)

func (c ObjectClass) Valid() bool {
	return c == ClassPerson || c == ClassVehicle || c == ClassOther
}

type ThreatLevel string

const (
	ThreatNormal     ThreatLevel = "normal"
	ThreatSuspicious ThreatLevel = "suspicious"
	ThreatCritical   ThreatLevel = "critical"
)

func (t ThreatLevel) Valid() bool {
	return t == ThreatNormal || t == ThreatSuspicious || t == ThreatCritical
}

type IncidentStatus string

const (
	StatusOpen          IncidentStatus = "open"
	StatusInvestigating IncidentStatus = "investigating"
	StatusResolved      IncidentStatus = "resolved"
)

type IncidentPriority string

const (
	PriorityCritical IncidentPriority = "critical"
	PriorityHigh     IncidentPriority = "high"
	PriorityMedium   IncidentPriority = "medium"
	PriorityLow      IncidentPriority = "low"
)

type AlertPriority string

const (
	AlertHigh   AlertPriority = "HIGH"
	AlertMedium AlertPriority = "MEDIUM"
	AlertLow    AlertPriority = "LOW"
)

// Retention windows per collection. Detections, alerts and logs carry an
// expires_at field matched by a TTL index; events, incidents and audit
// entries are retained.
const (
	DetectionTTL = 24 * time.Hour
	AlertTTL     = 1 * time.Hour
	LogTTL       = 7 * 24 * time.Hour
)

// BBox is the normalized bounding box reported with a detection.
// All values are fractions of the frame in [0..1].
type BBox struct {
	X float64 `bson:"x" json:"x"`
	Y float64 `bson:"y" json:"y"`
	W float64 `bson:"w" json:"w"`
	H float64 `bson:"h" json:"h"`
}

// Detection is one observed object instance. Immutable after insert,
// purged by the store at ExpiresAt.
type Detection struct {
	DetectionID string      `bson:"detection_id" json:"detection_id"`
	CameraID    string      `bson:"camera_id" json:"camera_id"`
	ObjectClass ObjectClass `bson:"object_class" json:"object_class"`
	Confidence  float64     `bson:"confidence" json:"confidence"`
	ThreatLevel ThreatLevel `bson:"threat_level" json:"threat_level"`
	BBox        *BBox       `bson:"bbox,omitempty" json:"bbox,omitempty"`
	FrameID     int64       `bson:"frame_id,omitempty" json:"frame_id,omitempty"`
	Timestamp   time.Time   `bson:"timestamp" json:"timestamp"`
	ExpiresAt   time.Time   `bson:"expires_at" json:"expires_at"`
}

// Active reports whether the detection is still retrievable at the given
// instant. The TTL index enforces the same boundary server-side; this is
// the deterministic check used on read paths and in tests.
func (d *Detection) Active(now time.Time) bool {
	return now.Before(d.ExpiresAt)
}

type GeoPosition struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
	Alt float64 `bson:"alt,omitempty" json:"alt,omitempty"`
}

type CameraHealth struct {
	CPU           float64   `bson:"cpu" json:"cpu"`
	Memory        float64   `bson:"memory" json:"memory"`
	Storage       float64   `bson:"storage" json:"storage"`
	Temperature   float64   `bson:"temperature" json:"temperature"`
	LastHeartbeat time.Time `bson:"last_heartbeat" json:"last_heartbeat"`
}

// CameraCounters are increment-only. They are never recomputed from the
// detections collection; drift is tolerated, loss is not.
type CameraCounters struct {
	TotalDetections int64 `bson:"total_detections" json:"total_detections"`
	Persons         int64 `bson:"persons" json:"persons"`
	Vehicles        int64 `bson:"vehicles" json:"vehicles"`
	Threats         int64 `bson:"threats" json:"threats"`
	TodayThreats    int64 `bson:"today_threats" json:"today_threats"`
}

type CameraStatus string

const (
	CameraLive    CameraStatus = "LIVE"
	CameraOffline CameraStatus = "OFFLINE"
)

type Camera struct {
	CameraID  string         `bson:"camera_id" json:"camera_id"`
	Name      string         `bson:"name,omitempty" json:"name,omitempty"`
	Zone      string         `bson:"zone,omitempty" json:"zone,omitempty"`
	Position  GeoPosition    `bson:"position" json:"position"`
	Status    CameraStatus   `bson:"status" json:"status"`
	Health    CameraHealth   `bson:"health" json:"health"`
	Counters  CameraCounters `bson:"counters" json:"counters"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updated_at"`
}

// QualifiedEvent is a detection that passed the qualification rule.
// The escalator flips EscalatedToIncident exactly once; everything else
// is immutable.
type QualifiedEvent struct {
	EventID             string      `bson:"event_id" json:"event_id"`
	CameraID            string      `bson:"camera_id" json:"camera_id"`
	DetectionID         string      `bson:"detection_id" json:"detection_id"`
	ObjectClass         ObjectClass `bson:"object_class" json:"object_class"`
	ThreatLevel         ThreatLevel `bson:"threat_level" json:"threat_level"`
	Reason              string      `bson:"reason" json:"reason"`
	EscalatedToIncident bool        `bson:"escalated_to_incident" json:"escalated_to_incident"`
	Timestamp           time.Time   `bson:"timestamp" json:"timestamp"`
	CreatedAt           time.Time   `bson:"created_at" json:"created_at"`
}

type Incident struct {
	IncidentID      string           `bson:"incident_id" json:"incident_id"`
	StationID       string           `bson:"station_id" json:"station_id"`
	Title           string           `bson:"title" json:"title"`
	Summary         string           `bson:"summary" json:"summary"`
	Priority        IncidentPriority `bson:"priority" json:"priority"`
	Type            string           `bson:"type" json:"type"`
	Status          IncidentStatus   `bson:"status" json:"status"`
	CameraID        string           `bson:"camera_id" json:"camera_id"`
	EventID         string           `bson:"event_id" json:"event_id"`
	DetectionCount  int64            `bson:"detection_count" json:"detection_count"`
	EvidenceRef     string           `bson:"evidence_ref,omitempty" json:"evidence_ref,omitempty"`
	Acknowledged    bool             `bson:"acknowledged" json:"acknowledged"`
	AcknowledgedBy  string           `bson:"acknowledged_by,omitempty" json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time       `bson:"acknowledged_at,omitempty" json:"acknowledged_at,omitempty"`
	CreatedAt       time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `bson:"updated_at" json:"updated_at"`
	ResolvedAt      *time.Time       `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	ResolvedBy      string           `bson:"resolved_by,omitempty" json:"resolved_by,omitempty"`
	ResolutionNotes string           `bson:"resolution_notes,omitempty" json:"resolution_notes,omitempty"`
	SyncedToCentral bool             `bson:"synced_to_central" json:"synced_to_central"`
	SyncTimestamp   *time.Time       `bson:"sync_timestamp,omitempty" json:"sync_timestamp,omitempty"`
}

type Alert struct {
	AlertID        string        `bson:"alert_id" json:"alert_id"`
	IncidentID     string        `bson:"incident_id,omitempty" json:"incident_id,omitempty"`
	DetectionID    string        `bson:"detection_id,omitempty" json:"detection_id,omitempty"`
	Title          string        `bson:"title" json:"title"`
	Message        string        `bson:"message" json:"message"`
	Priority       AlertPriority `bson:"priority" json:"priority"`
	Type           string        `bson:"type" json:"type"`
	StationID      string        `bson:"station_id" json:"station_id"`
	Acknowledged   bool          `bson:"acknowledged" json:"acknowledged"`
	AcknowledgedBy string        `bson:"acknowledged_by,omitempty" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time    `bson:"acknowledged_at,omitempty" json:"acknowledged_at,omitempty"`
	Timestamp      time.Time     `bson:"timestamp" json:"timestamp"`
	ExpiresAt      time.Time     `bson:"expires_at" json:"expires_at"`
}

// Active reports whether the alert is still inside its retention window.
func (a *Alert) Active(now time.Time) bool {
	return now.Before(a.ExpiresAt)
}

// LogEntry is the unified operational log record (7 day TTL). Not to be
// confused with AuditEntry, which is the permanent tamper-evident trail.
type LogEntry struct {
	LogID      string    `bson:"log_id" json:"log_id"`
	Level      string    `bson:"level" json:"level"`       // INFO, WARN, ERROR
	Category   string    `bson:"category" json:"category"` // DETECTION, INCIDENT, SYNC, SYSTEM
	Action     string    `bson:"action" json:"action"`
	Message    string    `bson:"message" json:"message"`
	CameraID   string    `bson:"camera_id,omitempty" json:"camera_id,omitempty"`
	IncidentID string    `bson:"incident_id,omitempty" json:"incident_id,omitempty"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
	ExpiresAt  time.Time `bson:"expires_at" json:"expires_at"`
}
