// Package session correlates sender identities with stable conversation
// session identifiers. The store is the only holder of per-sender mutable
// state in the bridge; callers rely on its atomicity for concurrent touches.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Session is one sender's conversation correlation.
type Session struct {
	SenderID  string
	SessionID string
	UpdatedAt time.Time
}

// Store is the session backend consumed by the dispatcher and the NLU adapter.
//
// Get is get-or-create: it always returns a usable session identifier, stable
// per sender until expiry rotates it. CheckExists never creates. Set is the
// side-effecting touch refreshing the record. All backend failures are
// reported as *StoreError.
type Store interface {
	CheckExists(ctx context.Context, senderID string) (bool, error)
	Get(ctx context.Context, senderID string) (Session, error)
	Set(ctx context.Context, senderID string) error
	DeleteExpired(ctx context.Context, olderThan time.Time) (int, error)
	Close() error
}

// StoreError reports a session backend failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("session store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err originated in the session backend.
func IsStoreError(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
