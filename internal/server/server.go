// Package server exposes the sync client's views over HTTP: JSON snapshots,
// a Server-Sent Events stream and a WebSocket feed of changes, health checks
// and Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync"
	"github.com/agentstation/clinicsync/internal/server/cache"
	"github.com/agentstation/clinicsync/internal/server/events"
	"github.com/agentstation/clinicsync/internal/server/events/adapters"
	"github.com/agentstation/clinicsync/internal/server/sse"
	ws "github.com/agentstation/clinicsync/internal/server/websocket"
	pkgevents "github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/logging"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	client         clinicsync.Client
	gatherer       prometheus.Gatherer
	cache          *cache.Cache
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	logger         *zerolog.Logger
	config         Config
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	startTime      time.Time
}

// New creates a server for client. gatherer backs /metrics and may be nil
// when metrics are disabled.
func New(client clinicsync.Client, cfg Config, logger *zerolog.Logger, gatherer prometheus.Gatherer) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger = logging.Component(logger, "server")

	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		client:   client,
		gatherer: gatherer,
		cache:    cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		broker:   events.NewBroker(logger),
		wsHub:    ws.NewHub(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true // access is guarded by the auth middleware
			},
		},
		logger:    logger,
		config:    cfg,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	s.sseBroadcaster = sse.NewBroadcaster(logger, sse.WithGreeting(func() []sse.Event {
		greeting := s.greeting()
		out := make([]sse.Event, len(greeting))
		for i, e := range greeting {
			out[i] = adapters.SSEEvent(e)
		}
		return out
	}))

	s.broker.Subscribe(adapters.NewWebSocketSubscriber(s.wsHub))
	s.broker.Subscribe(adapters.NewSSESubscriber(s.sseBroadcaster))

	s.connectHooks()

	logger.Debug().Str("addr", cfg.Addr()).Msg("Server instance created")
	return s, nil
}

// connectHooks publishes every applied envelope as a change of the view it
// touched. Hooks run on the client loop, so they only read snapshots.
func (s *Server) connectHooks() {
	s.client.OnEvent(func(env pkgevents.Envelope) {
		eventType, ok := events.ForChannel(env.Kind.Channel())
		if !ok {
			return
		}
		s.broker.Publish(eventType, s.view(eventType))
	})

	s.client.OnAlert(func(alert pkgevents.Alert) {
		s.broker.Publish(events.AlertRaised, alert)
		s.logger.Debug().
			Str("alert_id", alert.ID).
			Str("severity", string(alert.Severity)).
			Msg("Alert raised event published")
	})
}

// view returns the snapshot carried by a change event.
func (s *Server) view(t events.EventType) any {
	switch t {
	case events.QueueChanged:
		return s.client.Queue()
	case events.BedsChanged:
		return s.client.Beds()
	case events.AlertsChanged:
		return s.client.Alerts()
	case events.AppointmentsChanged:
		return s.client.Appointments()
	case events.StatsChanged:
		return s.client.Stats()
	}
	return nil
}

// greeting is the current state, sent to each new reader before live events.
func (s *Server) greeting() []events.Event {
	now := time.Now()
	out := []events.Event{{Type: events.StatusChanged, Timestamp: now, Data: s.client.Status()}}
	for _, t := range []events.EventType{
		events.QueueChanged,
		events.BedsChanged,
		events.AlertsChanged,
		events.AppointmentsChanged,
		events.StatsChanged,
	} {
		out = append(out, events.Event{Type: t, Timestamp: now, Data: s.view(t)})
	}
	return out
}

// Start starts background services (broker, WebSocket hub, SSE broadcaster)
// and the status forwarder.
func (s *Server) Start() {
	s.logger.Debug().Msg("Starting background services")

	s.wg.Add(4)
	go func() { defer s.wg.Done(); s.broker.Run(s.ctx) }()
	go func() { defer s.wg.Done(); s.wsHub.Run(s.ctx) }()
	go func() { defer s.wg.Done(); s.sseBroadcaster.Run(s.ctx) }()
	go func() { defer s.wg.Done(); s.forwardStatus() }()
}

// forwardStatus publishes connection status changes until shutdown.
func (s *Server) forwardStatus() {
	for st := range s.client.Watch(s.ctx) {
		s.broker.Publish(events.StatusChanged, st)
		s.logger.Debug().Str("phase", string(st.Phase)).Int("attempt", st.Attempt).Msg("Status change published")
	}
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// HTTPServer returns an http.Server for the configured address and timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// Shutdown stops background services and waits for them until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server background services")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Background services shut down successfully")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("Background services shutdown timed out")
		return ctx.Err()
	}
}

// Cache returns the server's cache instance.
func (s *Server) Cache() *cache.Cache {
	return s.cache
}

// Broker returns the event broker for publishing events.
func (s *Server) Broker() *events.Broker {
	return s.broker
}

// StartTime returns the server start time for uptime calculations.
func (s *Server) StartTime() time.Time {
	return s.startTime
}
