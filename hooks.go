package clinicsync

import (
	"sync"

	"github.com/agentstation/clinicsync/pkg/events"
)

// Hook function types for applied events
type (
	// EventHook is called after an envelope has been routed to its projection
	EventHook func(env events.Envelope)

	// AlertHook is called when a new alert enters the feed. Duplicates of an
	// alert already in the feed do not trigger it.
	AlertHook func(alert events.Alert)
)

// hooks manages event callbacks. Hooks run on the client loop and must not
// block or call back into the client synchronously.
type hooks struct {
	mu      sync.RWMutex
	onEvent []EventHook
	onAlert []AlertHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnEvent registers a callback for every applied envelope
func (h *hooks) OnEvent(fn EventHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onEvent = append(h.onEvent, fn)
}

// OnAlert registers a callback for newly raised alerts
func (h *hooks) OnAlert(fn AlertHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onAlert = append(h.onAlert, fn)
}

// trigger runs the hooks for env. alertAdded tells whether env put a new
// alert in the feed.
func (h *hooks) trigger(env events.Envelope, alertAdded bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, hook := range h.onEvent {
		hook(env)
	}

	if !alertAdded {
		return
	}
	if alert, ok := events.PayloadAs[events.Alert](env); ok {
		for _, hook := range h.onAlert {
			hook(alert)
		}
	}
}
