// Package clinicsync is the real-time event synchronization client of a
// clinic operations dashboard.
//
// A Client keeps one logical connection to a server-push event source,
// reconnects after failures, and projects the typed event stream onto
// in-memory views: the patient queue, the bed map, the alert feed, the
// appointment board and the dashboard statistics.
//
// Example usage:
//
//	client, err := clinicsync.New(
//	    clinicsync.WithAddress("wss://clinic.example/ws"),
//	    clinicsync.WithToken(token),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Dispose()
//
//	client.OnAlert(func(a events.Alert) {
//	    log.Printf("alert %s: %s", a.Severity, a.Title)
//	})
//
//	if err := client.Connect(); err != nil {
//	    log.Fatal(err)
//	}
//
//	summary := client.Queue().Summary
//	fmt.Printf("%d waiting, longest %d min\n", summary.TotalWaiting, summary.LongestWait)
//
// All transport callbacks, retry timers and commands are serialized through
// a single loop goroutine. Readers never take that loop: every view is an
// atomically published snapshot.
package clinicsync

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentstation/clinicsync/internal/metrics"
	"github.com/agentstation/clinicsync/pkg/constants"
	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/logging"
	"github.com/agentstation/clinicsync/pkg/projections"
	"github.com/agentstation/clinicsync/pkg/status"
	"github.com/agentstation/clinicsync/pkg/transport"
)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// Connection controls the lifecycle of the server connection.
type Connection interface {
	// Connect opens the connection. It is a no-op while connected or
	// reconnecting, and restarts the retry budget after exhaustion.
	Connect() error

	// Disconnect closes the connection without retrying.
	Disconnect() error

	// Dispose releases the client. Pending retries are cancelled, the
	// transport is closed and projections are emptied. Later calls are no-ops.
	Dispose()

	// Status returns the current connection status.
	Status() status.Status

	// Watch streams status changes until ctx is done or the client is disposed.
	Watch(ctx context.Context) <-chan status.Status
}

// Views provides non-blocking read access to the projections.
type Views interface {
	Queue() projections.QueueState
	Beds() projections.BedsState
	Alerts() projections.AlertsState
	Appointments() projections.AppointmentsState
	Stats() projections.StatsState
}

// Topics manages the subscribed server channels.
type Topics interface {
	AddTopic(topic string) error
	RemoveTopic(topic string) error
	Topics() []string
}

// Actions sends requests to the server. State only changes when the server
// confirms with the matching event.
type Actions interface {
	CallPatient(departmentID, room string) error
	CompletePatient(patientID string) error
	DismissAlert(alertID string) error
	SendAction(kind events.Kind, payload any) error
}

// Hooks registers callbacks for applied events.
//
// Callbacks run on the client loop goroutine. A callback must not call a
// Client method that waits on the loop (Connect, Disconnect, Dispose,
// AddTopic, RemoveTopic or any Actions method); doing so deadlocks the
// client. Hand such work to another goroutine:
//
//	client.OnAlert(func(a events.Alert) {
//	    go client.DismissAlert(a.ID)
//	})
//
// View getters and Status are safe to call from a callback.
type Hooks interface {
	// OnEvent registers fn for every applied envelope. fn runs on the loop.
	OnEvent(fn EventHook)
	// OnAlert registers fn for every new alert. fn runs on the loop.
	OnAlert(fn AlertHook)
}

// Client is the clinic dashboard sync client.
type Client interface {
	Connection
	Views
	Topics
	Actions
	Hooks
}

// client is the internal implementation of the Client interface.
type client struct {
	s *session

	cmds     chan func()
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Client. No connection is made until Connect.
func New(opts ...Option) (Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("applying options: %w", err)
		}
	}

	if cfg.logger == nil {
		cfg.logger = logging.Default()
	}
	logger := logging.Component(cfg.logger, "clinicsync")

	if cfg.source == nil {
		cfg.source = transport.NewWebSocket(
			transport.WithBearerToken(cfg.token),
			transport.WithTransportLogger(logging.Component(cfg.logger, "transport")),
		)
	}

	m, err := metrics.New(cfg.registerer)
	if err != nil {
		return nil, errors.NewConfigError("metrics", "registering collectors", err)
	}

	c := &client{
		cmds: make(chan func(), constants.LoopBufferSize),
		done: make(chan struct{}),
	}

	if c.s, err = newSession(cfg, logger, m, c.post); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.loop()

	return c, nil
}

// loop is the single writer of all client state.
func (c *client) loop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case fn := <-c.cmds:
			fn()
		}
	}
}

// post queues fn for the loop. It is dropped once the client is disposed.
func (c *client) post(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.done:
	}
}

// do runs fn on the loop and waits for its result.
func (c *client) do(fn func() error) error {
	result := make(chan error, 1)
	select {
	case c.cmds <- func() { result <- fn() }:
	case <-c.done:
		return errors.ErrDisposed
	}
	select {
	case err := <-result:
		return err
	case <-c.done:
		return errors.ErrDisposed
	}
}

// Connect implements Connection.
func (c *client) Connect() error {
	return c.do(c.s.connect)
}

// Disconnect implements Connection.
func (c *client) Disconnect() error {
	return c.do(c.s.disconnect)
}

// Dispose implements Connection.
func (c *client) Dispose() {
	_ = c.do(func() error {
		c.s.dispose()
		return nil
	})
	c.stopOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

// Status implements Connection.
func (c *client) Status() status.Status {
	return c.s.status.Current()
}

// Watch implements Connection.
func (c *client) Watch(ctx context.Context) <-chan status.Status {
	return c.s.status.Watch(ctx)
}

// Queue implements Views.
func (c *client) Queue() projections.QueueState { return c.s.queue.Snapshot() }

// Beds implements Views.
func (c *client) Beds() projections.BedsState { return c.s.beds.Snapshot() }

// Alerts implements Views.
func (c *client) Alerts() projections.AlertsState { return c.s.alerts.Snapshot() }

// Appointments implements Views.
func (c *client) Appointments() projections.AppointmentsState { return c.s.appointments.Snapshot() }

// Stats implements Views.
func (c *client) Stats() projections.StatsState { return c.s.stats.Snapshot() }

// AddTopic implements Topics.
func (c *client) AddTopic(topic string) error {
	return c.do(func() error { return c.s.addTopic(topic) })
}

// RemoveTopic implements Topics.
func (c *client) RemoveTopic(topic string) error {
	return c.do(func() error { return c.s.removeTopic(topic) })
}

// Topics implements Topics.
func (c *client) Topics() []string {
	return c.s.subs.Topics()
}

// OnEvent implements Hooks.
func (c *client) OnEvent(fn EventHook) { c.s.hooks.OnEvent(fn) }

// OnAlert implements Hooks.
func (c *client) OnAlert(fn AlertHook) { c.s.hooks.OnAlert(fn) }
