package alerts

import "errors"

var (
	// ErrAlreadyAcknowledged means a second actor lost the ack race or
	// repeated the action. Surfaced as a conflict, not retried.
	ErrAlreadyAcknowledged = errors.New("alert already acknowledged")

	ErrNotFound = errors.New("alert not found or expired")
)
