package data

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound means the entity does not exist at all.
	ErrNotFound = errors.New("entity not found")

	// ErrNoTransition means a conditional update matched no document:
	// either the entity is gone or its status changed underneath us.
	// Callers re-read to tell the two apart.
	ErrNoTransition = errors.New("conditional update matched nothing")

	// ErrUnavailable wraps timeouts and connection failures against the
	// store. Ingestion absorbs it; authoritative writers retry it.
	ErrUnavailable = errors.New("store unavailable")
)

// wrapStoreErr classifies driver errors so callers can use errors.Is
// without importing the mongo package.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
