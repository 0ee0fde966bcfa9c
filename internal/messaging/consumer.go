package messaging

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/streadway/amqp"

	"github.com/healthmesh/agent-coordination/internal/models"
	"github.com/healthmesh/agent-coordination/pkg/metrics"
	"github.com/healthmesh/agent-coordination/pkg/rabbitmq"
)

// Subscription states reported by the connection-status endpoint.
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateSubscribed   = "subscribed"
)

const (
	retryCountHeader  = "x-retry-count"
	defaultMaxRetries = 5
	handlerTimeout    = 30 * time.Second
)

// Handler processes one decoded envelope. A nil return acknowledges the
// message; an error schedules a bounded redelivery.
type Handler func(ctx context.Context, env *models.Envelope) error

// Dispatcher is the long-lived subscriber for one service direction. Each
// queue is consumed on its own channel with prefetch 1, so handlers for a
// queue run one at a time in delivery order while queues progress
// independently of each other.
type Dispatcher struct {
	manager  *rabbitmq.Manager
	codec    *Codec
	topology rabbitmq.TopologySpec
	logger   *slog.Logger
	metrics  *metrics.Collector

	handlers   map[string]Handler
	maxRetries int32
	state      atomic.Value

	// redeliver republishes a failed delivery with its retry count bumped.
	// Swapped out in tests; bound to a live channel while subscribed.
	redeliver func(d amqp.Delivery, attempts int32) error
}

func NewDispatcher(manager *rabbitmq.Manager, codec *Codec, topology rabbitmq.TopologySpec, logger *slog.Logger, collector *metrics.Collector) *Dispatcher {
	d := &Dispatcher{
		manager:    manager,
		codec:      codec,
		topology:   topology,
		logger:     logger,
		metrics:    collector,
		handlers:   make(map[string]Handler),
		maxRetries: defaultMaxRetries,
	}
	d.state.Store(StateDisconnected)
	return d
}

// Register installs the handler for an event name. Called at startup before
// Run; the registry is not safe for mutation afterwards.
func (d *Dispatcher) Register(eventName string, h Handler) {
	d.handlers[eventName] = h
}

// State returns the current subscription state.
func (d *Dispatcher) State() string {
	return d.state.Load().(string)
}

// Connected reports whether the dispatcher is in its steady state.
func (d *Dispatcher) Connected() bool {
	return d.State() == StateSubscribed
}

// Topology exposes the consume-side topology for status reporting.
func (d *Dispatcher) Topology() rabbitmq.TopologySpec { return d.topology }

// Run consumes until the context is canceled, redialing with exponential
// backoff whenever the connection or a channel drops. It never returns an
// error from a single bad message; consume-side failures stay local to the
// message that caused them.
func (d *Dispatcher) Run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	bo.MaxInterval = 30 * time.Second

	for {
		d.state.Store(StateConnecting)
		err := d.consume(ctx)
		d.state.Store(StateDisconnected)
		if ctx.Err() != nil {
			return
		}
		wait := bo.NextBackOff()
		d.logger.Warn("consumer lost connection, reconnecting",
			slog.Any("error", err),
			slog.Duration("backoff", wait))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if err := d.manager.Redial(); err != nil {
			d.logger.Error("redial failed", slog.Any("error", err))
			continue
		}
		bo.Reset()
	}
}

// consume subscribes to every queue in the topology and blocks until the
// connection closes or the context is canceled.
func (d *Dispatcher) consume(ctx context.Context) error {
	conn := d.manager.Connection()
	if conn == nil {
		return ErrConnectionLost
	}

	pubCh, err := conn.Channel()
	if err != nil {
		return err
	}
	defer pubCh.Close()
	var pubMu sync.Mutex
	d.redeliver = func(delivery amqp.Delivery, attempts int32) error {
		headers := amqp.Table{}
		for k, v := range delivery.Headers {
			headers[k] = v
		}
		headers[retryCountHeader] = attempts
		pubMu.Lock()
		defer pubMu.Unlock()
		return pubCh.Publish(delivery.Exchange, delivery.RoutingKey, false, false, amqp.Publishing{
			ContentType:  delivery.ContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    delivery.MessageId,
			Priority:     delivery.Priority,
			Headers:      headers,
			Body:         delivery.Body,
		})
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	errc := make(chan error, len(d.topology.Queues))
	var wg sync.WaitGroup

	for _, q := range d.topology.Queues {
		ch, err := conn.Channel()
		if err != nil {
			return err
		}
		if err := ch.Qos(1, 0, false); err != nil {
			ch.Close()
			return err
		}
		deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
		if err != nil {
			ch.Close()
			return err
		}

		wg.Add(1)
		go func(queue string, ch *amqp.Channel, deliveries <-chan amqp.Delivery) {
			defer wg.Done()
			defer ch.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case delivery, ok := <-deliveries:
					if !ok {
						errc <- ErrConnectionLost
						return
					}
					d.handleDelivery(ctx, queue, delivery)
				}
			}
		}(q.Name, ch, deliveries)
	}

	d.state.Store(StateSubscribed)
	d.logger.Info("subscribed",
		slog.String("exchange", d.topology.Exchange),
		slog.Any("queues", d.topology.QueueNames()))

	var cause error
	select {
	case <-ctx.Done():
	case amqpErr := <-closed:
		if amqpErr != nil {
			cause = amqpErr
		} else {
			cause = ErrConnectionLost
		}
	case cause = <-errc:
	}
	wg.Wait()
	return cause
}

// handleDelivery routes one message through decode, handler lookup, and the
// bounded-retry policy. Every path acknowledges or dead-letters; nothing here
// crashes the consuming process.
func (d *Dispatcher) handleDelivery(ctx context.Context, queue string, delivery amqp.Delivery) {
	env, err := d.codec.Decode(delivery.Body)
	if err != nil {
		// Redelivery cannot fix a malformed payload: ack and drop with a log.
		d.logger.Error("dropping malformed message",
			slog.String("queue", queue),
			slog.Any("error", err))
		d.metrics.RecordConsumeFailure()
		_ = delivery.Ack(false)
		return
	}

	handler, ok := d.handlers[env.EventName]
	if !ok {
		// Unknown event types are not errors; newer publishers may emit
		// events this consumer does not care about yet.
		d.logger.Warn("no handler registered, acknowledging",
			slog.String("event", env.EventName),
			slog.String("queue", queue))
		_ = delivery.Ack(false)
		return
	}

	hctx, cancel := context.WithTimeout(WithMessageID(ctx, delivery.MessageId), handlerTimeout)
	err = handler(hctx, env)
	cancel()
	if err == nil {
		d.metrics.RecordConsumed()
		_ = delivery.Ack(false)
		return
	}

	d.metrics.RecordConsumeFailure()
	attempts := retryCount(delivery.Headers) + 1
	herr := &HandlerExecutionError{EventName: env.EventName, Err: err}
	if attempts >= d.maxRetries {
		// Nack without requeue; the queue's dead-letter args route the
		// message to the DLQ for inspection.
		d.logger.Error("retries exhausted, dead-lettering",
			slog.String("event", env.EventName),
			slog.String("user_id", env.UserID),
			slog.Int("attempts", int(attempts)),
			slog.Any("error", herr))
		_ = delivery.Nack(false, false)
		return
	}

	if rerr := d.redeliver(delivery, attempts); rerr != nil {
		// Could not republish with the bumped counter; fall back to a broker
		// requeue so the message is not lost.
		d.logger.Error("redelivery publish failed, requeueing",
			slog.Any("error", rerr))
		_ = delivery.Nack(false, true)
		return
	}
	d.logger.Warn("handler failed, scheduled retry",
		slog.String("event", env.EventName),
		slog.Int("attempt", int(attempts)),
		slog.Any("error", herr))
	_ = delivery.Ack(false)
}

func retryCount(headers amqp.Table) int32 {
	if headers == nil {
		return 0
	}
	switch v := headers[retryCountHeader].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	default:
		return 0
	}
}
