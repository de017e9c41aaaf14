package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubscriber struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (r *recordingSubscriber) Send(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSubscriber) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingSubscriber) received() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recordingSubscriber) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func runBroker(t *testing.T) (*Broker, context.CancelFunc) {
	t.Helper()
	logger := zerolog.Nop()
	b := NewBroker(&logger)
	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	t.Cleanup(cancel)
	return b, cancel
}

func subscribe(t *testing.T, b *Broker, subs ...Subscriber) {
	t.Helper()
	want := b.SubscriberCount() + len(subs)
	for _, s := range subs {
		b.Subscribe(s)
	}
	require.Eventually(t, func() bool { return b.SubscriberCount() == want }, time.Second, 5*time.Millisecond)
}

func TestBrokerFanOutInOrder(t *testing.T) {
	b, _ := runBroker(t)
	first, second := &recordingSubscriber{}, &recordingSubscriber{}
	subscribe(t, b, first, second)

	require.True(t, b.Publish(StatusChanged, "connected"))
	require.True(t, b.Publish(QueueChanged, 3))
	require.True(t, b.Publish(QueueChanged, 2))

	for _, sub := range []*recordingSubscriber{first, second} {
		require.Eventually(t, func() bool { return len(sub.received()) == 3 }, time.Second, 5*time.Millisecond)
		got := sub.received()
		assert.Equal(t, []uint64{1, 2, 3}, []uint64{got[0].Seq, got[1].Seq, got[2].Seq})
		assert.Equal(t, StatusChanged, got[0].Type)
		assert.Equal(t, 2, got[2].Data)
		assert.False(t, got[0].Timestamp.IsZero())
	}
}

func TestBrokerSeqIncreasesUnderConcurrentPublish(t *testing.T) {
	b, _ := runBroker(t)
	first, second := &recordingSubscriber{}, &recordingSubscriber{}
	subscribe(t, b, first, second)

	const publishers, perPublisher = 8, 25
	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				for !b.Publish(QueueChanged, i) {
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}
	wg.Wait()

	total := publishers * perPublisher
	for _, sub := range []*recordingSubscriber{first, second} {
		require.Eventually(t, func() bool { return len(sub.received()) == total }, 2*time.Second, 5*time.Millisecond)
		for i, ev := range sub.received() {
			if ev.Seq != uint64(i+1) {
				t.Errorf("event %d: seq = %d, want %d", i, ev.Seq, i+1)
			}
		}
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	b, _ := runBroker(t)
	kept, dropped := &recordingSubscriber{}, &recordingSubscriber{}
	subscribe(t, b, kept)

	unsubscribe := b.Subscribe(dropped)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 2 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe() // second call is a no-op
	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, dropped.isClosed())
	assert.False(t, kept.isClosed())

	b.Publish(AlertRaised, nil)
	require.Eventually(t, func() bool { return len(kept.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, dropped.received())
}

func TestBrokerShutdownClosesSubscribers(t *testing.T) {
	b, cancel := runBroker(t)
	sub := &recordingSubscriber{}
	subscribe(t, b, sub)

	cancel()
	require.Eventually(t, sub.isClosed, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestBrokerPublishDropsWhenFull(t *testing.T) {
	logger := zerolog.Nop()
	b := NewBroker(&logger) // not running

	for i := 0; i < brokerBufferSize; i++ {
		require.True(t, b.Publish(StatsChanged, i))
	}
	assert.False(t, b.Publish(StatsChanged, "overflow"))
}

func TestSubscriberFunc(t *testing.T) {
	b, _ := runBroker(t)
	got := make(chan Event, 1)
	subscribe(t, b, SubscriberFunc(func(e Event) error {
		got <- e
		return nil
	}))

	b.Publish(BedsChanged, "icu")
	select {
	case e := <-got:
		assert.Equal(t, BedsChanged, e.Type)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestForChannel(t *testing.T) {
	tests := []struct {
		channel string
		want    EventType
		ok      bool
	}{
		{"queue", QueueChanged, true},
		{"beds", BedsChanged, true},
		{"alerts", AlertsChanged, true},
		{"appointments", AppointmentsChanged, true},
		{"stats", StatsChanged, true},
		{"pharmacy", "", false},
	}
	for _, tt := range tests {
		got, ok := ForChannel(tt.channel)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ForChannel(%q) = %q, %v; want %q, %v", tt.channel, got, ok, tt.want, tt.ok)
		}
	}
}
