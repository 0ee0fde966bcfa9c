package messaging

import (
	"errors"
	"fmt"
)

// ErrConnectionLost signals the broker connection dropped; the consumer
// reconnects with backoff and the broker redelivers unacked messages.
var ErrConnectionLost = errors.New("broker connection lost")

// MalformedEnvelopeError is a decode-time failure on a received message.
// Redelivery cannot fix a malformed payload, so the dispatcher acks and
// drops these with a log line instead of requeueing.
type MalformedEnvelopeError struct {
	Reason string
}

func (e *MalformedEnvelopeError) Error() string {
	return "malformed envelope: " + e.Reason
}

// PublishFailedError is raised when the broker is unreachable or the channel
// nacks a publisher confirm. The caller's domain write is never rolled back.
type PublishFailedError struct {
	EventName string
	Err       error
}

func (e *PublishFailedError) Error() string {
	return fmt.Sprintf("publish %s failed: %v", e.EventName, e.Err)
}

func (e *PublishFailedError) Unwrap() error { return e.Err }

// HandlerExecutionError wraps a handler failure during recalculation. The
// message is redelivered with an incremented retry count until the bound is
// reached, then dead-lettered.
type HandlerExecutionError struct {
	EventName string
	Err       error
}

func (e *HandlerExecutionError) Error() string {
	return fmt.Sprintf("handler for %s failed: %v", e.EventName, e.Err)
}

func (e *HandlerExecutionError) Unwrap() error { return e.Err }
