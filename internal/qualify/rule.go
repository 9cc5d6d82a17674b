package qualify

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/technosupport/ts-shield/internal/data"
)

// Rule is the qualification predicate as a configuration surface.
// A detection qualifies when either leg holds:
//   - its threat level is in ThreatLevels, or
//   - its confidence is at or above ConfidenceFloor and the same camera
//     reported RepeatCount or more detections of the same class inside
//     RepeatWindow.
type Rule struct {
	ThreatLevels    []data.ThreatLevel
	ConfidenceFloor float64
	RepeatCount     int64
	RepeatWindow    time.Duration
}

// UnmarshalYAML overlays file values onto whatever the rule already
// holds, so a partial file keeps the remaining defaults. The window is
// written in Go duration syntax ("30s", "2m").
func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ThreatLevels    []data.ThreatLevel `yaml:"threat_levels"`
		ConfidenceFloor *float64           `yaml:"confidence_floor"`
		RepeatCount     *int64             `yaml:"repeat_count"`
		RepeatWindow    string             `yaml:"repeat_window"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.ThreatLevels != nil {
		r.ThreatLevels = raw.ThreatLevels
	}
	if raw.ConfidenceFloor != nil {
		r.ConfidenceFloor = *raw.ConfidenceFloor
	}
	if raw.RepeatCount != nil {
		r.RepeatCount = *raw.RepeatCount
	}
	if raw.RepeatWindow != "" {
		d, err := time.ParseDuration(raw.RepeatWindow)
		if err != nil {
			return fmt.Errorf("repeat_window: %w", err)
		}
		r.RepeatWindow = d
	}
	return nil
}

// DefaultRule mirrors the policy the pipeline shipped with: suspicious
// and critical detections always qualify.
func DefaultRule() *Rule {
	return &Rule{
		ThreatLevels:    []data.ThreatLevel{data.ThreatSuspicious, data.ThreatCritical},
		ConfidenceFloor: 0.85,
		RepeatCount:     3,
		RepeatWindow:    30 * time.Second,
	}
}

func (r *Rule) matchesThreat(level data.ThreatLevel) bool {
	for _, t := range r.ThreatLevels {
		if t == level {
			return true
		}
	}
	return false
}

func (r *Rule) validate() error {
	for _, t := range r.ThreatLevels {
		if !t.Valid() {
			return fmt.Errorf("unknown threat level %q", t)
		}
	}
	if r.ConfidenceFloor < 0 || r.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence_floor %v out of [0,1]", r.ConfidenceFloor)
	}
	if r.RepeatCount < 0 || r.RepeatWindow < 0 {
		return fmt.Errorf("repeat thresholds must be non-negative")
	}
	return nil
}

// LoadRule reads a rule file. A rule that fails validation is rejected
// whole; the caller keeps whatever rule it had.
func LoadRule(path string) (*Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := DefaultRule()
	if err := yaml.Unmarshal(b, r); err != nil {
		return nil, fmt.Errorf("rule parse: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("rule rejected: %w", err)
	}
	return r, nil
}
