// Package nlu adapts outbound text or named-event requests into calls to
// the natural-language-understanding backend and interprets the replies.
package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Request is one outbound backend call. Exactly one of Text or EventName
// is set.
type Request struct {
	SessionID string
	Text      string
	EventName string
}

// Requester is the backend capability the adapter consumes. Query blocks
// until the backend replies or errors; the caller owns the context
// deadline. Implementations must resolve each call exactly once.
type Requester interface {
	Query(ctx context.Context, req Request) (json.RawMessage, error)
}

// Fragment is one unit of reply content ready to be relayed to the channel.
type Fragment struct {
	Type   int
	Speech string
	Raw    json.RawMessage
}

// Outcome classifies how an exchange resolved.
type Outcome int

const (
	// OutcomeSuccess carries ordered fragments to relay.
	OutcomeSuccess Outcome = iota
	// OutcomeEmpty is a well-formed reply with nothing to relay.
	OutcomeEmpty
	// OutcomeFailure means the backend or the session store failed.
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Exchange is one resolved request/response round-trip. Exactly one outcome
// is produced per exchange; it is immutable once resolved.
type Exchange struct {
	ID        string
	SenderID  string
	SessionID string
	Outcome   Outcome
	Fragments []Fragment
	Raw       json.RawMessage
	Err       error
}

// BackendError reports a failed backend call or an unsupported reply.
type BackendError struct {
	Status int
	Err    error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("nlu backend: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("nlu backend: %v", e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsBackendError reports whether err originated in the NLU backend.
func IsBackendError(err error) bool {
	var backendErr *BackendError
	return errors.As(err, &backendErr)
}
