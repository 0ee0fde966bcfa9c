package messaging

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/healthmesh/agent-coordination/internal/models"
	"github.com/healthmesh/agent-coordination/pkg/metrics"
	"github.com/healthmesh/agent-coordination/pkg/rabbitmq"
)

const confirmTimeout = 5 * time.Second

// Publisher publishes envelopes to the outbound topic exchange with
// persistent delivery and publisher confirms. Publish is fire-and-forget from
// the caller's perspective: a failure surfaces as PublishFailedError but the
// caller's already-committed domain write stays committed.
type Publisher struct {
	manager  *rabbitmq.Manager
	codec    *Codec
	topology rabbitmq.TopologySpec
	logger   *slog.Logger
	metrics  *metrics.Collector
}

func NewPublisher(manager *rabbitmq.Manager, codec *Codec, topology rabbitmq.TopologySpec, logger *slog.Logger, collector *metrics.Collector) *Publisher {
	return &Publisher{
		manager:  manager,
		codec:    codec,
		topology: topology,
		logger:   logger,
		metrics:  collector,
	}
}

// Exchange returns the outbound exchange name for status reporting.
func (p *Publisher) Exchange() string { return p.topology.Exchange }

// QueueFor resolves the queue a routing key lands in, for response metadata.
func (p *Publisher) QueueFor(eventName, userID string) string {
	return p.topology.QueueFor(RoutingKeyFor(eventName, userID))
}

// Publish encodes a summary card into an envelope and publishes it with
// persistent delivery mode, waiting for the broker confirm. Returns a unique
// message id for correlation.
func (p *Publisher) Publish(eventName, userID string, card interface{}, priority uint8) (string, error) {
	body, err := p.codec.Encode(eventName, userID, card, priority)
	if err != nil {
		return "", &PublishFailedError{EventName: eventName, Err: err}
	}

	key := RoutingKeyFor(eventName, userID)
	if !p.topology.Covers(key) {
		// Unroutable messages are a topology bug, not a publish failure.
		p.logger.Warn("routing key matches no queue binding",
			slog.String("routing_key", key),
			slog.String("exchange", p.topology.Exchange))
	}

	ch, err := p.manager.Connection().Channel()
	if err != nil {
		return "", &PublishFailedError{EventName: eventName, Err: err}
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return "", &PublishFailedError{EventName: eventName, Err: err}
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	messageID := uuid.NewString()
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now(),
		Body:         body,
	}
	if priority > 0 {
		pub.Priority = priority
	}

	if err := ch.Publish(p.topology.Exchange, key, false, false, pub); err != nil {
		return "", &PublishFailedError{EventName: eventName, Err: err}
	}

	select {
	case confirm := <-confirms:
		if !confirm.Ack {
			return "", &PublishFailedError{EventName: eventName, Err: ErrConnectionLost}
		}
	case <-time.After(confirmTimeout):
		return "", &PublishFailedError{EventName: eventName, Err: errConfirmTimeout}
	}

	p.metrics.RecordPublished()
	p.logger.Debug("published event",
		slog.String("event", eventName),
		slog.String("routing_key", key),
		slog.String("message_id", messageID))
	return messageID, nil
}

var errConfirmTimeout = &timeoutError{}

type timeoutError struct{}

func (*timeoutError) Error() string { return "publisher confirm timed out" }
func (*timeoutError) Timeout() bool { return true }

// PublishCrisis publishes a crisis alert at maximum priority.
func (p *Publisher) PublishCrisis(userID string, card *models.CrisisCard) (string, error) {
	return p.Publish(models.EventCrisisAlert, userID, card, models.CrisisPriority)
}
