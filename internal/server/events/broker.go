package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const brokerBufferSize = 256

type registration struct {
	id  uint64
	sub Subscriber // nil removes id
}

// Broker hands every published event to each subscriber. Seq is assigned on
// the Run goroutine, so subscribers see strictly increasing sequence numbers
// in delivery order.
type Broker struct {
	queue   chan Event
	changes chan registration
	seq     uint64 // owned by Run
	nextID  atomic.Uint64
	now     func() time.Time
	logger  *zerolog.Logger

	mu   sync.RWMutex
	subs map[uint64]Subscriber
	ids  []uint64 // registration order
}

// NewBroker creates a broker. Nothing is delivered until Run.
func NewBroker(logger *zerolog.Logger) *Broker {
	return &Broker{
		queue:   make(chan Event, brokerBufferSize),
		changes: make(chan registration, 8),
		now:     time.Now,
		logger:  logger,
		subs:    make(map[uint64]Subscriber),
	}
}

// Run delivers events until ctx is cancelled, then closes every subscriber.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			b.logger.Info().Msg("Event broker stopped")
			return
		case r := <-b.changes:
			b.apply(r)
		case ev := <-b.queue:
			b.seq++
			ev.Seq = b.seq
			b.deliver(ev)
		}
	}
}

func (b *Broker) apply(r registration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.sub != nil {
		b.subs[r.id] = r.sub
		b.ids = append(b.ids, r.id)
		b.logger.Debug().Uint64("subscriber", r.id).Int("total_subscribers", len(b.subs)).Msg("Subscriber added")
		return
	}

	sub, ok := b.subs[r.id]
	if !ok {
		return
	}
	delete(b.subs, r.id)
	for i, id := range b.ids {
		if id == r.id {
			b.ids = append(b.ids[:i], b.ids[i+1:]...)
			break
		}
	}
	_ = sub.Close()
	b.logger.Debug().Uint64("subscriber", r.id).Int("total_subscribers", len(b.subs)).Msg("Subscriber removed")
}

func (b *Broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.ids {
		_ = b.subs[id].Close()
	}
	b.subs = make(map[uint64]Subscriber)
	b.ids = nil
}

// deliver runs on the Run goroutine only. Subscribers must not block, so one
// slow reader cannot stall the rest.
func (b *Broker) deliver(ev Event) {
	b.mu.RLock()
	targets := make([]Subscriber, 0, len(b.ids))
	for _, id := range b.ids {
		targets = append(targets, b.subs[id])
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.Send(ev); err != nil {
			b.logger.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("Subscriber rejected event")
		}
	}
	b.logger.Trace().Str("event_type", string(ev.Type)).Uint64("seq", ev.Seq).Int("subscribers", len(targets)).Msg("Event delivered")
}

// Publish timestamps and queues an event without blocking. A full queue drops the
// event and returns false.
func (b *Broker) Publish(eventType EventType, data any) bool {
	select {
	case b.queue <- Event{Type: eventType, Timestamp: b.now(), Data: data}:
		return true
	default:
		b.logger.Warn().Str("event_type", string(eventType)).Msg("Broker queue full, event dropped")
		return false
	}
}

// Subscribe registers sub and returns a function that removes and closes it.
// Delivery starts with the next event Run handles.
func (b *Broker) Subscribe(sub Subscriber) (unsubscribe func()) {
	id := b.nextID.Add(1)
	b.changes <- registration{id: id, sub: sub}
	var once sync.Once
	return func() {
		once.Do(func() { b.changes <- registration{id: id} })
	}
}

// SubscriberCount returns the number of registered subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
