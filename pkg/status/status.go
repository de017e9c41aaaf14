// Package status publishes the connection status of a client.
package status

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/pkg/constants"
	"github.com/agentstation/clinicsync/pkg/logging"
)

// Phase is the three-valued connection state shown to users.
type Phase string

// Connection phases.
const (
	Disconnected Phase = "disconnected"
	Reconnecting Phase = "reconnecting"
	Connected    Phase = "connected"
)

// Status is one observation of the connection.
type Status struct {
	Phase           Phase
	Attempt         int
	LastConnectedAt time.Time
	LastError       error
	// Fatal is set once retries are exhausted. Only a manual connect clears it.
	Fatal bool
}

// Connected reports whether the connection is open.
func (s Status) Connected() bool { return s.Phase == Connected }

// Reconnecting reports whether a retry is pending or in flight.
func (s Status) Reconnecting() bool { return s.Phase == Reconnecting }

// ErrorMessage returns the last error text, or "".
func (s Status) ErrorMessage() string {
	if s.LastError == nil {
		return ""
	}
	return s.LastError.Error()
}

type statusJSON struct {
	Phase           Phase      `json:"phase"`
	Connected       bool       `json:"connected"`
	Reconnecting    bool       `json:"reconnecting"`
	Attempt         int        `json:"attempt"`
	LastConnectedAt *time.Time `json:"lastConnectedAt,omitempty"`
	LastError       string     `json:"lastError,omitempty"`
	Fatal           bool       `json:"fatal,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	out := statusJSON{
		Phase:        s.Phase,
		Connected:    s.Connected(),
		Reconnecting: s.Reconnecting(),
		Attempt:      s.Attempt,
		LastError:    s.ErrorMessage(),
		Fatal:        s.Fatal,
	}
	if !s.LastConnectedAt.IsZero() {
		t := s.LastConnectedAt
		out.LastConnectedAt = &t
	}
	return json.Marshal(out)
}

func (s Status) equal(o Status) bool {
	return s.Phase == o.Phase &&
		s.Attempt == o.Attempt &&
		s.Fatal == o.Fatal &&
		s.LastConnectedAt.Equal(o.LastConnectedAt) &&
		s.ErrorMessage() == o.ErrorMessage()
}

// Publisher holds the current status and fans changes out to watchers.
// Current never blocks. Watchers that fall behind lose updates.
type Publisher struct {
	logger  *zerolog.Logger
	current atomic.Pointer[Status]
	count   atomic.Uint64

	mu       sync.Mutex
	closed   bool
	nextID   int
	watchers map[int]*watcher
}

// watcher is one Watch registration. stop detaches it from its context so
// nothing outlives the channel once the publisher closes it.
type watcher struct {
	ch   chan Status
	stop func() bool
}

func (w *watcher) release() {
	w.stop()
	close(w.ch)
}

// NewPublisher creates a publisher whose initial status is Disconnected.
func NewPublisher(logger *zerolog.Logger) *Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	p := &Publisher{
		logger:   logging.Component(logger, "status"),
		watchers: make(map[int]*watcher),
	}
	p.current.Store(&Status{Phase: Disconnected})
	return p
}

// Current returns the latest status.
func (p *Publisher) Current() Status {
	return *p.current.Load()
}

// Published returns the number of changes published so far.
func (p *Publisher) Published() uint64 {
	return p.count.Load()
}

// Publish records s and notifies watchers. It reports false when s equals
// the current status or the publisher is closed.
func (p *Publisher) Publish(s Status) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.Current().equal(s) {
		return false
	}
	p.current.Store(&s)
	p.count.Add(1)

	for id, w := range p.watchers {
		select {
		case w.ch <- s:
		default:
			p.logger.Warn().Int("watcher", id).Str("phase", string(s.Phase)).Msg("Status watcher full, update dropped")
		}
	}

	p.logger.Debug().
		Str("phase", string(s.Phase)).
		Int("attempt", s.Attempt).
		Int("watchers", len(p.watchers)).
		Msg("Status published")
	return true
}

// Watch returns a channel that first receives the current status and then
// every change. The channel is closed when ctx is done or the publisher
// closes.
func (p *Publisher) Watch(ctx context.Context) <-chan Status {
	ch := make(chan Status, constants.WatchBufferSize)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch
	}
	id := p.nextID
	p.nextID++
	ch <- p.Current()
	p.watchers[id] = &watcher{ch: ch, stop: context.AfterFunc(ctx, func() { p.remove(id) })}
	p.mu.Unlock()

	return ch
}

func (p *Publisher) remove(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.watchers[id]; ok {
		delete(p.watchers, id)
		w.release()
	}
}

// WatcherCount returns the number of active watchers.
func (p *Publisher) WatcherCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watchers)
}

// Close stops publishing and closes every watcher channel.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, w := range p.watchers {
		delete(p.watchers, id)
		w.release()
	}
}
