package audit

import "fmt"

// IntegrityError reports a checksum mismatch on a stored entry.
type IntegrityError struct {
	AuditID  string
	Expected string
	Stored   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("audit integrity failure on %s: computed %s, stored %s",
		e.AuditID, e.Expected, e.Stored)
}
