package reconnect

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending scheduled call.
type Timer interface {
	// Stop prevents the call from running. It reports whether the call was
	// still pending.
	Stop() bool
}

// Scheduler runs a function after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(d time.Duration, f func()) Timer

// AfterFunc implements Scheduler.
func (fn SchedulerFunc) AfterFunc(d time.Duration, f func()) Timer {
	return fn(d, f)
}

// Real schedules on the wall clock with time.AfterFunc.
var Real Scheduler = SchedulerFunc(func(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
})

// FakeScheduler is a manually advanced Scheduler for tests.
type FakeScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []*fakeTimer
	delays  []time.Duration
}

type fakeTimer struct {
	s   *FakeScheduler
	at  time.Duration
	seq int
	f   func()
}

// NewFakeScheduler creates a scheduler whose clock only moves on Advance.
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{}
}

// AfterFunc implements Scheduler.
func (s *FakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &fakeTimer{s: s, at: s.now + d, seq: s.seq, f: f}
	s.pending = append(s.pending, t)
	s.delays = append(s.delays, d)
	return t
}

// Stop implements Timer.
func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i, p := range t.s.pending {
		if p == t {
			t.s.pending = append(t.s.pending[:i], t.s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves the clock forward and runs every timer that comes due, in
// due order. It returns the number of timers fired.
func (s *FakeScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	s.now += d
	due := s.takeDue()
	s.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}

// FireNext runs the earliest pending timer regardless of the clock.
func (s *FakeScheduler) FireNext() bool {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return false
	}
	s.sortPending()
	t := s.pending[0]
	s.pending = s.pending[1:]
	if t.at > s.now {
		s.now = t.at
	}
	s.mu.Unlock()

	t.f()
	return true
}

// Pending returns the number of timers not yet fired or stopped.
func (s *FakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Delays returns every delay ever requested, in request order.
func (s *FakeScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func (s *FakeScheduler) takeDue() []*fakeTimer {
	s.sortPending()
	var due []*fakeTimer
	for len(s.pending) > 0 && s.pending[0].at <= s.now {
		due = append(due, s.pending[0])
		s.pending = s.pending[1:]
	}
	return due
}

func (s *FakeScheduler) sortPending() {
	sort.SliceStable(s.pending, func(i, j int) bool {
		if s.pending[i].at != s.pending[j].at {
			return s.pending[i].at < s.pending[j].at
		}
		return s.pending[i].seq < s.pending[j].seq
	})
}
