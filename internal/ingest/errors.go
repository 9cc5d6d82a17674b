package ingest

import "fmt"

// ValidationError rejects a malformed detection before persistence.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid detection: %s %s", e.Field, e.Reason)
}
