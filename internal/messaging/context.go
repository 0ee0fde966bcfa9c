package messaging

import "context"

type messageIDKey struct{}

// WithMessageID attaches the broker-assigned message id to the handler
// context so handlers can correlate derived records to the source event.
func WithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIDKey{}, id)
}

// MessageIDFrom returns the source message id, or empty when not set.
func MessageIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(messageIDKey{}).(string); ok {
		return id
	}
	return ""
}
