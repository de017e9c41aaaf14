package clinicsync

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/internal/metrics"
	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/projections"
	"github.com/agentstation/clinicsync/pkg/reconnect"
	"github.com/agentstation/clinicsync/pkg/router"
	"github.com/agentstation/clinicsync/pkg/status"
	"github.com/agentstation/clinicsync/pkg/subscriptions"
	"github.com/agentstation/clinicsync/pkg/transport"
)

// session is the synchronous core of a Client. Every method runs on the
// client loop, so no field needs a lock. Transport callbacks and timer fires
// reach it through post.
type session struct {
	cfg     *config
	logger  *zerolog.Logger
	post    func(func())
	source  transport.EventSource
	decoder *events.Decoder
	policy  *reconnect.Policy
	subs    *subscriptions.Manager
	router  *router.Router
	status  *status.Publisher
	metrics *metrics.Metrics
	hooks   *hooks

	queue        *projections.Queue
	beds         *projections.Beds
	alerts       *projections.Alerts
	appointments *projections.Appointments
	stats        *projections.Stats

	// connGen identifies the connection whose callbacks are accepted.
	connGen uint64
	// timerGen identifies the retry timer whose fire is accepted.
	timerGen uint64
	timer    reconnect.Timer

	lastConnectedAt time.Time
	disposed        bool
}

func newSession(cfg *config, logger *zerolog.Logger, m *metrics.Metrics, post func(func())) (*session, error) {
	s := &session{
		cfg:          cfg,
		logger:       logger,
		post:         post,
		source:       cfg.source,
		decoder:      events.NewDecoderWithClock(cfg.now),
		policy:       reconnect.New(cfg.reconnect),
		status:       status.NewPublisher(logger),
		metrics:      m,
		hooks:        newHooks(),
		queue:        projections.NewQueue(logger),
		beds:         projections.NewBeds(logger),
		alerts:       projections.NewAlerts(logger),
		appointments: projections.NewAppointments(logger),
		stats:        projections.NewStats(logger),
	}

	s.subs = subscriptions.New(subscriptions.SenderFunc(s.send), logger, cfg.topics...)
	s.router = router.New(
		router.WithLogger(logger),
		router.WithUnroutableHook(func(k events.Kind) { m.Unroutable(string(k)) }),
	)
	for _, p := range []router.Projection{s.queue, s.beds, s.alerts, s.appointments, s.stats} {
		if err := s.router.Register(p); err != nil {
			return nil, err
		}
	}

	m.SetPhase(status.Disconnected)
	return s, nil
}

// connect starts a connection from Idle or Exhausted. It is a no-op while a
// connection is open or being established.
func (s *session) connect() error {
	if s.disposed {
		return errors.ErrDisposed
	}
	if !s.policy.Connect() {
		s.logger.Debug().Str("state", s.policy.State().String()).Msg("Connect ignored")
		return nil
	}
	s.cancelTimer()
	s.publish()
	s.open()
	return nil
}

func (s *session) open() {
	s.connGen++
	s.logger.Info().Str("address", s.cfg.address).Int("attempt", s.policy.Attempt()).Msg("Connecting")
	s.source.Open(s.cfg.address, &connHandler{s: s, gen: s.connGen})
}

func (s *session) onOpen(gen uint64) {
	if gen != s.connGen || s.disposed {
		return
	}
	s.policy.Opened()
	s.lastConnectedAt = s.cfg.now()
	s.publish()
	s.logger.Info().Str("address", s.cfg.address).Msg("Connected")

	if err := s.subs.Opened(); err != nil {
		s.logger.Warn().Err(err).Msg("Subscribe failed")
	}
}

func (s *session) onMessage(gen uint64, frame []byte) {
	if gen != s.connGen || s.disposed {
		return
	}

	env, err := s.decoder.Decode(frame)
	if err != nil {
		reason := string(errors.MalformedFrame)
		var de *errors.DecodeError
		if errors.As(err, &de) {
			reason = string(de.Reason)
		}
		s.metrics.DecodeError(reason)
		s.logger.Warn().Err(err).Str("reason", reason).Int("bytes", len(frame)).Msg("Dropping frame")
		return
	}
	s.metrics.FrameReceived(string(env.Kind))

	alertsBefore := s.alerts.Version()
	if !s.router.Route(env) {
		return
	}
	s.hooks.trigger(env, env.Kind == events.AlertCreated && s.alerts.Version() != alertsBefore)
}

func (s *session) onClose(gen uint64, err error) {
	if gen != s.connGen || s.disposed {
		return
	}
	s.subs.Closed()

	d := s.policy.Failed(err)
	switch d.Outcome {
	case reconnect.Retry:
		s.logger.Warn().Err(err).Int("attempt", d.Attempt).Dur("delay", d.Delay).Msg("Connection lost, retrying")
		s.metrics.ReconnectAttempt()
		s.schedule(d.Delay)
	case reconnect.GiveUp:
		s.logger.Error().Err(s.policy.LastError()).Msg("Reconnect attempts exhausted")
	default:
		return
	}
	s.publish()
}

func (s *session) schedule(delay time.Duration) {
	s.cancelTimer()
	s.timerGen++
	gen := s.timerGen
	s.timer = s.cfg.scheduler.AfterFunc(delay, func() {
		s.post(func() { s.retry(gen) })
	})
}

func (s *session) retry(gen uint64) {
	if gen != s.timerGen || s.disposed {
		return
	}
	s.timer = nil
	if !s.policy.Retrying() {
		return
	}
	s.open()
}

func (s *session) cancelTimer() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// disconnect closes the connection without retrying.
func (s *session) disconnect() error {
	if s.disposed {
		return errors.ErrDisposed
	}
	s.teardown()
	s.publish()
	s.logger.Info().Msg("Disconnected")
	return nil
}

func (s *session) teardown() {
	s.cancelTimer()
	s.connGen++
	s.source.Close()
	s.subs.Closed()
	s.policy.Reset()
}

// dispose releases every resource. No status is published after dispose.
func (s *session) dispose() {
	if s.disposed {
		return
	}
	s.teardown()
	s.disposed = true
	s.status.Close()
	s.metrics.SetPhase(status.Disconnected)

	s.queue.Reset()
	s.beds.Reset()
	s.alerts.Reset()
	s.appointments.Reset()
	s.stats.Reset()
	s.logger.Info().Msg("Client disposed")
}

func (s *session) current() status.Status {
	st := status.Status{
		Attempt:         s.policy.Attempt(),
		LastConnectedAt: s.lastConnectedAt,
		LastError:       s.policy.LastError(),
	}
	switch s.policy.State() {
	case reconnect.Open:
		st.Phase = status.Connected
	case reconnect.Reconnecting:
		st.Phase = status.Reconnecting
	case reconnect.Connecting:
		if st.Attempt > 0 {
			st.Phase = status.Reconnecting
		} else {
			st.Phase = status.Disconnected
		}
	case reconnect.Exhausted:
		st.Phase = status.Disconnected
		st.Fatal = true
	default:
		st.Phase = status.Disconnected
	}
	return st
}

func (s *session) publish() {
	st := s.current()
	if s.status.Publish(st) {
		s.metrics.SetPhase(st.Phase)
	}
}

// send encodes env and writes it to the transport. Frames sent while the
// transport is not open are dropped.
func (s *session) send(env events.Envelope) error {
	if s.disposed {
		return errors.ErrDisposed
	}
	frame, err := events.Encode(env)
	if err != nil {
		return err
	}
	if err := s.source.Send(frame); err != nil {
		s.metrics.SendDropped()
		s.logger.Debug().Err(err).Str("kind", string(env.Kind)).Msg("Frame dropped")
		return err
	}
	return nil
}

func (s *session) addTopic(topic string) error {
	if s.disposed {
		return errors.ErrDisposed
	}
	_, err := s.subs.Add(topic)
	return err
}

func (s *session) removeTopic(topic string) error {
	if s.disposed {
		return errors.ErrDisposed
	}
	_, err := s.subs.Remove(topic)
	return err
}

// connHandler adapts transport callbacks of one connection onto the loop.
type connHandler struct {
	s   *session
	gen uint64
}

func (h *connHandler) OnOpen() {
	h.s.post(func() { h.s.onOpen(h.gen) })
}

func (h *connHandler) OnMessage(frame []byte) {
	h.s.post(func() { h.s.onMessage(h.gen, frame) })
}

func (h *connHandler) OnClose(err error) {
	h.s.post(func() { h.s.onClose(h.gen, err) })
}
