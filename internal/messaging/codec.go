package messaging

import (
	"encoding/json"
	"time"

	"github.com/healthmesh/agent-coordination/internal/models"
)

// Codec serializes and deserializes the canonical message envelope. Encode
// stamps the envelope with the publish time and the originating service;
// Decode only checks the required top-level fields and leaves summary-card
// validation to the handler that knows the event's shape.
type Codec struct {
	source string
	now    func() time.Time
}

// NewCodec builds a codec tagging every envelope with the given source service.
func NewCodec(source string) *Codec {
	return &Codec{source: source, now: time.Now}
}

// Encode builds the wire envelope for a summary card. The card is marshaled
// as-is, so callers pass one of the models card structs.
func (c *Codec) Encode(eventName, userID string, card interface{}, priority uint8) ([]byte, error) {
	raw, err := json.Marshal(card)
	if err != nil {
		return nil, &MalformedEnvelopeError{Reason: "summary_card not serializable: " + err.Error()}
	}
	env := models.Envelope{
		EventName:   eventName,
		UserID:      userID,
		Timestamp:   c.now().UTC().Format(time.RFC3339),
		Source:      c.source,
		SummaryCard: raw,
		Priority:    priority,
	}
	return json.Marshal(env)
}

// Decode parses a wire envelope. Missing event_name, user_id, or summary_card
// is a MalformedEnvelopeError; unknown or extra fields are ignored.
func (c *Codec) Decode(body []byte) (*models.Envelope, error) {
	var env models.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &MalformedEnvelopeError{Reason: err.Error()}
	}
	if env.EventName == "" {
		return nil, &MalformedEnvelopeError{Reason: "missing event_name"}
	}
	if env.UserID == "" {
		return nil, &MalformedEnvelopeError{Reason: "missing user_id"}
	}
	if len(env.SummaryCard) == 0 || string(env.SummaryCard) == "null" {
		return nil, &MalformedEnvelopeError{Reason: "missing summary_card"}
	}
	return &env, nil
}
