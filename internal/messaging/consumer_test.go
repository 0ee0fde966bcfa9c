package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthmesh/agent-coordination/internal/models"
	"github.com/healthmesh/agent-coordination/pkg/logger"
	"github.com/healthmesh/agent-coordination/pkg/rabbitmq"
)

type fakeAck struct {
	acks        int
	nacks       int
	lastRequeue bool
}

func (f *fakeAck) Ack(tag uint64, multiple bool) error { f.acks++; return nil }
func (f *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	f.nacks++
	f.lastRequeue = requeue
	return nil
}
func (f *fakeAck) Reject(tag uint64, requeue bool) error { return nil }

func testDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	topology := rabbitmq.TopologySpec{
		Exchange: "diet_to_fitness",
		Queues:   []rabbitmq.QueueSpec{{Name: "fitness.meal.queue", BindingKey: "meal.#"}},
	}
	return NewDispatcher(nil, NewCodec("test"), topology, logger.Discard(), nil)
}

func mealDelivery(t *testing.T, ack *fakeAck, headers amqp.Table) amqp.Delivery {
	t.Helper()
	body, err := NewCodec("diet-agent").Encode(models.EventMealLogged, "u1", &models.MealCard{CalorieCount: 400}, 0)
	require.NoError(t, err)
	return amqp.Delivery{
		Acknowledger: ack,
		Body:         body,
		Headers:      headers,
		Exchange:     "diet_to_fitness",
		RoutingKey:   "meal.logged",
		MessageId:    "msg-1",
	}
}

func TestHandleDeliverySuccessAcks(t *testing.T) {
	d := testDispatcher(t)
	var gotUser, gotMessageID string
	d.Register(models.EventMealLogged, func(ctx context.Context, env *models.Envelope) error {
		gotUser = env.UserID
		gotMessageID = MessageIDFrom(ctx)
		return nil
	})

	ack := &fakeAck{}
	d.handleDelivery(context.Background(), "fitness.meal.queue", mealDelivery(t, ack, nil))

	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	assert.Equal(t, "u1", gotUser)
	assert.Equal(t, "msg-1", gotMessageID)
}

func TestHandleDeliveryUnknownEventAcks(t *testing.T) {
	d := testDispatcher(t)
	// No handler registered: forward compatibility means ack, not error.
	ack := &fakeAck{}
	d.handleDelivery(context.Background(), "fitness.meal.queue", mealDelivery(t, ack, nil))

	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
}

func TestHandleDeliveryMalformedAcksAndDrops(t *testing.T) {
	d := testDispatcher(t)
	called := false
	d.Register(models.EventMealLogged, func(ctx context.Context, env *models.Envelope) error {
		called = true
		return nil
	})

	ack := &fakeAck{}
	d.handleDelivery(context.Background(), "fitness.meal.queue", amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{"user_id":"u1"}`),
	})

	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	assert.False(t, called)
}

func TestHandleDeliveryFailureSchedulesRetry(t *testing.T) {
	d := testDispatcher(t)
	d.Register(models.EventMealLogged, func(ctx context.Context, env *models.Envelope) error {
		return errors.New("store unavailable")
	})

	var redelivered amqp.Delivery
	var redeliveredAttempts int32
	d.redeliver = func(delivery amqp.Delivery, attempts int32) error {
		redelivered = delivery
		redeliveredAttempts = attempts
		return nil
	}

	ack := &fakeAck{}
	d.handleDelivery(context.Background(), "fitness.meal.queue", mealDelivery(t, ack, nil))

	// Original is acked; the copy with the bumped counter carries the retry.
	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	assert.Equal(t, int32(1), redeliveredAttempts)
	assert.Equal(t, "meal.logged", redelivered.RoutingKey)
}

func TestHandleDeliveryIncrementsRetryCount(t *testing.T) {
	d := testDispatcher(t)
	d.Register(models.EventMealLogged, func(ctx context.Context, env *models.Envelope) error {
		return errors.New("still failing")
	})

	var redeliveredAttempts int32
	d.redeliver = func(delivery amqp.Delivery, attempts int32) error {
		redeliveredAttempts = attempts
		return nil
	}

	ack := &fakeAck{}
	d.handleDelivery(context.Background(), "fitness.meal.queue",
		mealDelivery(t, ack, amqp.Table{retryCountHeader: int32(2)}))

	assert.Equal(t, int32(3), redeliveredAttempts)
}

func TestHandleDeliveryExhaustedRetriesDeadLetters(t *testing.T) {
	d := testDispatcher(t)
	d.Register(models.EventMealLogged, func(ctx context.Context, env *models.Envelope) error {
		return errors.New("poison")
	})
	d.redeliver = func(delivery amqp.Delivery, attempts int32) error {
		t.Fatal("must not redeliver past the retry bound")
		return nil
	}

	ack := &fakeAck{}
	d.handleDelivery(context.Background(), "fitness.meal.queue",
		mealDelivery(t, ack, amqp.Table{retryCountHeader: int32(4)}))

	// Nack without requeue routes to the dead-letter queue.
	assert.Zero(t, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.lastRequeue)
}

func TestHandleDeliveryRedeliverFailureRequeues(t *testing.T) {
	d := testDispatcher(t)
	d.Register(models.EventMealLogged, func(ctx context.Context, env *models.Envelope) error {
		return errors.New("transient")
	})
	d.redeliver = func(delivery amqp.Delivery, attempts int32) error {
		return errors.New("channel closed")
	}

	ack := &fakeAck{}
	d.handleDelivery(context.Background(), "fitness.meal.queue", mealDelivery(t, ack, nil))

	assert.Zero(t, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.True(t, ack.lastRequeue)
}

func TestDispatcherStartsDisconnected(t *testing.T) {
	d := testDispatcher(t)
	assert.Equal(t, StateDisconnected, d.State())
	assert.False(t, d.Connected())
}

func TestRetryCountHeaderParsing(t *testing.T) {
	assert.Equal(t, int32(0), retryCount(nil))
	assert.Equal(t, int32(0), retryCount(amqp.Table{}))
	assert.Equal(t, int32(2), retryCount(amqp.Table{retryCountHeader: int32(2)}))
	assert.Equal(t, int32(3), retryCount(amqp.Table{retryCountHeader: int64(3)}))
	assert.Equal(t, int32(0), retryCount(amqp.Table{retryCountHeader: "bogus"}))
}
