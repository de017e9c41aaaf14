// Package sse streams dashboard changes to browsers as Server-Sent Events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	streamBuffer     = 64
	queueSize        = 256
	defaultKeepAlive = 30 * time.Second
)

// Event is one SSE message.
type Event struct {
	Event string `json:"event,omitempty"`
	ID    string `json:"id,omitempty"`
	Data  any    `json:"data"`
}

// WriteTo writes e in text/event-stream framing. Data is JSON encoded.
func (e Event) WriteTo(w io.Writer) (int64, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return 0, err
	}
	var n int
	if e.Event != "" {
		n, err = fmt.Fprintf(w, "event: %s\n", e.Event)
		if err != nil {
			return int64(n), err
		}
	}
	total := int64(n)
	if e.ID != "" {
		n, err = fmt.Fprintf(w, "id: %s\n", e.ID)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	n, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return total + int64(n), err
}

type stream struct {
	id     string
	events chan Event
}

// Broadcaster keeps the set of open event streams.
type Broadcaster struct {
	queue     chan Event
	join      chan *stream
	leave     chan *stream
	done      chan struct{}
	greeting  func() []Event
	keepAlive time.Duration
	logger    *zerolog.Logger

	mu      sync.RWMutex
	streams map[*stream]struct{}
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithGreeting sets the events written to every stream before live events.
// It is called once per connection.
func WithGreeting(fn func() []Event) Option {
	return func(b *Broadcaster) { b.greeting = fn }
}

// WithKeepAlive sets how often an idle stream gets a comment line. Zero disables it.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broadcaster) { b.keepAlive = d }
}

// NewBroadcaster creates a broadcaster. Streams are served once Run starts.
func NewBroadcaster(logger *zerolog.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		queue:     make(chan Event, queueSize),
		join:      make(chan *stream, 10),
		leave:     make(chan *stream, 10),
		done:      make(chan struct{}),
		keepAlive: defaultKeepAlive,
		logger:    logger,
		streams:   make(map[*stream]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run fans events out until ctx is cancelled. Open streams end with it.
func (b *Broadcaster) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for s := range b.streams {
				close(s.events)
			}
			clear(b.streams)
			b.mu.Unlock()
			b.logger.Info().Msg("SSE broadcaster stopped")
			return

		case s := <-b.join:
			b.mu.Lock()
			b.streams[s] = struct{}{}
			n := len(b.streams)
			b.mu.Unlock()
			b.logger.Info().Str("stream", s.id).Int("total_clients", n).Msg("SSE stream opened")

		case s := <-b.leave:
			b.mu.Lock()
			if _, ok := b.streams[s]; ok {
				delete(b.streams, s)
				close(s.events)
			}
			n := len(b.streams)
			b.mu.Unlock()
			b.logger.Info().Str("stream", s.id).Int("total_clients", n).Msg("SSE stream closed")

		case ev := <-b.queue:
			b.mu.RLock()
			for s := range b.streams {
				select {
				case s.events <- ev:
				default:
					b.logger.Warn().Str("stream", s.id).Str("event", ev.Event).Msg("SSE stream lagging, event skipped")
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Broadcast queues ev for every open stream without blocking.
func (b *Broadcaster) Broadcast(ev Event) {
	select {
	case b.queue <- ev:
	default:
		b.logger.Warn().Str("event", ev.Event).Msg("SSE queue full, event dropped")
	}
}

// ClientCount returns the number of open streams.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.streams)
}

// ServeHTTP streams events until the request ends or the broadcaster stops.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		b.logger.Error().Err(err).Msg("Response does not support streaming")
		return
	}

	s := &stream{id: uuid.NewString(), events: make(chan Event, streamBuffer)}
	select {
	case b.join <- s:
	case <-b.done:
		return
	}
	defer func() {
		select {
		case b.leave <- s:
		case <-b.done:
		}
	}()

	send := func(ev Event) bool {
		if _, err := ev.WriteTo(w); err != nil {
			b.logger.Debug().Err(err).Str("stream", s.id).Msg("SSE write failed")
			return false
		}
		return rc.Flush() == nil
	}

	if b.greeting != nil {
		for _, ev := range b.greeting() {
			if !send(ev) {
				return
			}
		}
	}

	var tick <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case ev, ok := <-s.events:
			if !ok || !send(ev) {
				return
			}
		case <-tick:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil || rc.Flush() != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
