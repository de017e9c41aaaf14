// Package subscriptions keeps the desired set of server channels and
// replays it after every connect.
package subscriptions

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/logging"
)

// DefaultTopics are the channels a dashboard needs.
var DefaultTopics = []string{"queue", "appointments", "beds", "alerts", "stats"}

// Sender delivers an outbound envelope to the server.
type Sender interface {
	SendEnvelope(env events.Envelope) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(env events.Envelope) error

// SendEnvelope implements Sender.
func (f SenderFunc) SendEnvelope(env events.Envelope) error { return f(env) }

// Manager owns the desired topic set.
type Manager struct {
	sender Sender
	logger *zerolog.Logger

	mu     sync.Mutex
	topics map[string]struct{}
	open   bool
}

// New creates a manager with an initial topic set. Blank topics are ignored.
func New(sender Sender, logger *zerolog.Logger, topics ...string) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	m := &Manager{
		sender: sender,
		logger: logger,
		topics: make(map[string]struct{}, len(topics)),
	}
	for _, t := range topics {
		if t = normalize(t); t != "" {
			m.topics[t] = struct{}{}
		}
	}
	return m
}

func normalize(topic string) string {
	return strings.TrimSpace(topic)
}

// Topics returns the desired set in sorted order.
func (m *Manager) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked()
}

func (m *Manager) sortedLocked() []string {
	out := make([]string, 0, len(m.topics))
	for t := range m.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Add inserts a topic. It reports whether the set changed; only a change
// made while connected sends an incremental subscribe.
func (m *Manager) Add(topic string) (bool, error) {
	topic = normalize(topic)
	if topic == "" {
		return false, errors.NewValidationError("topic", topic, "cannot be empty")
	}

	m.mu.Lock()
	if _, ok := m.topics[topic]; ok {
		m.mu.Unlock()
		return false, nil
	}
	m.topics[topic] = struct{}{}
	open := m.open
	m.mu.Unlock()

	if open {
		return true, m.send(events.Subscribe, []string{topic})
	}
	return true, nil
}

// Remove deletes a topic. It reports whether the set changed; only a change
// made while connected sends an incremental unsubscribe.
func (m *Manager) Remove(topic string) (bool, error) {
	topic = normalize(topic)

	m.mu.Lock()
	if _, ok := m.topics[topic]; !ok {
		m.mu.Unlock()
		return false, nil
	}
	delete(m.topics, topic)
	open := m.open
	m.mu.Unlock()

	if open {
		return true, m.send(events.Unsubscribe, []string{topic})
	}
	return true, nil
}

// Opened marks the connection open and subscribes to the full desired set.
// The set is resent on every open, changed or not. An empty set sends nothing.
func (m *Manager) Opened() error {
	m.mu.Lock()
	m.open = true
	topics := m.sortedLocked()
	m.mu.Unlock()

	if len(topics) == 0 {
		m.logger.Debug().Msg("No topics to subscribe")
		return nil
	}
	return m.send(events.Subscribe, topics)
}

// Closed marks the connection closed.
func (m *Manager) Closed() {
	m.mu.Lock()
	m.open = false
	m.mu.Unlock()
}

func (m *Manager) send(kind events.Kind, topics []string) error {
	err := m.sender.SendEnvelope(events.Control(kind, topics))
	if err != nil {
		m.logger.Warn().Err(err).Str("kind", string(kind)).Strs("topics", topics).Msg("Subscription update not sent")
		return err
	}
	m.logger.Debug().Str("kind", string(kind)).Strs("topics", topics).Msg("Subscription update sent")
	return nil
}
