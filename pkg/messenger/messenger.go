// Package messenger sends formatted replies back to the originating
// messaging channel.
package messenger

import (
	"context"
	"errors"
	"fmt"
)

// Message is one outbound payload in the channel's send-API shape.
type Message map[string]interface{}

// Text builds a plain text message.
func Text(s string) Message {
	return Message{"text": s}
}

// Sender delivers a message to a recipient on the channel.
type Sender interface {
	Send(ctx context.Context, recipientID string, msg Message) error
}

// SendError reports a failed delivery attempt.
type SendError struct {
	RecipientID string
	Status      int
	Err         error
}

func (e *SendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("messenger send to %s: status %d: %v", e.RecipientID, e.Status, e.Err)
	}
	return fmt.Sprintf("messenger send to %s: %v", e.RecipientID, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// IsSendError reports whether err is a channel delivery failure.
func IsSendError(err error) bool {
	var sendErr *SendError
	return errors.As(err, &sendErr)
}
