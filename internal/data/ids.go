package data

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entity ID prefixes, kept stable for operators grepping logs.
const (
	PrefixDetection = "DET"
	PrefixEvent     = "EVT"
	PrefixIncident  = "INC"
	PrefixAlert     = "ALT"
	PrefixLog       = "LOG"
	PrefixAudit     = "AUD"
)

// NewID returns an identifier like DET_1735686000123_1b9f3c2a.
// The millisecond timestamp keeps IDs roughly sortable; the uuid fragment
// makes them unique under concurrent generation.
func NewID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}
