package rabbitmq

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/streadway/amqp"
)

// QueueSpec describes one durable queue and the binding pattern that feeds it.
type QueueSpec struct {
	Name        string
	BindingKey  string
	MaxPriority uint8
}

// TopologySpec is the full broker topology one service direction declares:
// a durable topic exchange, its bound queues, and a shared dead-letter queue.
type TopologySpec struct {
	Exchange        string
	Queues          []QueueSpec
	DeadLetterQueue string
}

// Covers reports whether a routing key matches at least one queue binding.
// The publisher uses it to warn about unroutable events instead of crashing.
func (t TopologySpec) Covers(routingKey string) bool {
	for _, q := range t.Queues {
		if MatchesBinding(q.BindingKey, routingKey) {
			return true
		}
	}
	return false
}

// QueueFor returns the first queue whose binding matches the routing key.
func (t TopologySpec) QueueFor(routingKey string) string {
	for _, q := range t.Queues {
		if MatchesBinding(q.BindingKey, routingKey) {
			return q.Name
		}
	}
	return ""
}

// QueueNames lists the queue names in declaration order.
func (t TopologySpec) QueueNames() []string {
	names := make([]string, 0, len(t.Queues))
	for _, q := range t.Queues {
		names = append(names, q.Name)
	}
	return names
}

// MatchesBinding implements AMQP topic matching: "*" matches exactly one
// word, "#" matches zero or more words.
func MatchesBinding(pattern, key string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(key); i++ {
			if matchWords(pattern[1:], key[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(key) > 0 && matchWords(pattern[1:], key[1:])
	default:
		return len(key) > 0 && pattern[0] == key[0] && matchWords(pattern[1:], key[1:])
	}
}

// Manager maintains a single AMQP connection and declares topology.
type Manager struct {
	url    string
	conn   *amqp.Connection
	logger *slog.Logger
	mu     sync.RWMutex
}

func NewManager(url string, logger *slog.Logger) (*Manager, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &Manager{
		url:    url,
		conn:   conn,
		logger: logger,
	}, nil
}

func (m *Manager) Connection() *amqp.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn
}

// Redial replaces a dropped connection. Callers own the retry/backoff policy.
func (m *Manager) Redial() error {
	conn, err := amqp.Dial(m.url)
	if err != nil {
		return err
	}
	m.mu.Lock()
	old := m.conn
	m.conn = conn
	m.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	m.logger.Info("reconnected to broker")
	return nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

// DeclareEventTopology ensures the exchange, queues, and bindings exist.
// Safe to call on every startup: re-declaring identical entities is a no-op,
// while a conflicting re-declare returns an error the caller treats as fatal.
func (m *Manager) DeclareEventTopology(spec TopologySpec) error {
	ch, err := m.Connection().Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		spec.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", spec.Exchange, err)
	}

	if spec.DeadLetterQueue != "" {
		if _, err := ch.QueueDeclare(
			spec.DeadLetterQueue,
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			return fmt.Errorf("declare dlq %s: %w", spec.DeadLetterQueue, err)
		}
	}

	for _, q := range spec.Queues {
		args := amqp.Table{}
		if spec.DeadLetterQueue != "" {
			args["x-dead-letter-exchange"] = ""
			args["x-dead-letter-routing-key"] = spec.DeadLetterQueue
		}
		if q.MaxPriority > 0 {
			args["x-max-priority"] = int32(q.MaxPriority)
		}

		if _, err := ch.QueueDeclare(
			q.Name,
			true,
			false,
			false,
			false,
			args,
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.Name, err)
		}

		if err := ch.QueueBind(
			q.Name,
			q.BindingKey,
			spec.Exchange,
			false,
			nil,
		); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", q.Name, q.BindingKey, err)
		}
	}

	return nil
}
