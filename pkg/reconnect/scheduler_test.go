package reconnect_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/clinicsync/pkg/reconnect"
)

func TestFakeSchedulerAdvance(t *testing.T) {
	s := reconnect.NewFakeScheduler()
	var fired []string

	s.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	s.AfterFunc(time.Second, func() { fired = append(fired, "a") })

	assert.Equal(t, 0, s.Advance(500*time.Millisecond))
	assert.Equal(t, 1, s.Advance(500*time.Millisecond))
	assert.Equal(t, []string{"a"}, fired)

	assert.Equal(t, 1, s.Advance(time.Second))
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second}, s.Delays())
}

func TestFakeSchedulerStop(t *testing.T) {
	s := reconnect.NewFakeScheduler()
	called := false
	timer := s.AfterFunc(time.Second, func() { called = true })

	assert.Equal(t, 1, s.Pending())
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	assert.Equal(t, 0, s.Pending())

	assert.False(t, s.FireNext())
	s.Advance(time.Hour)
	assert.False(t, called)
}

func TestRealScheduler(t *testing.T) {
	done := make(chan struct{})
	reconnect.Real.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real scheduler did not fire")
	}

	timer := reconnect.Real.AfterFunc(time.Hour, func() { t.Error("stopped timer fired") })
	assert.True(t, timer.Stop())
}
