package escalate

import (
	"errors"
	"fmt"

	"github.com/technosupport/ts-shield/internal/data"
)

// ErrConflict means a concurrent transition won the race. The caller
// should re-read and decide whether its action still applies.
var ErrConflict = errors.New("incident transition conflict")

// InvalidTransitionError is an attempted move the state machine does
// not allow from the current status. Surfaced to the actor, not
// retried.
type InvalidTransitionError struct {
	IncidentID string
	From       data.IncidentStatus
	Attempted  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("incident %s: cannot %s, already %s", e.IncidentID, e.Attempted, e.From)
}
