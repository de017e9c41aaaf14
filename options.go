package clinicsync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/pkg/constants"
	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/reconnect"
	"github.com/agentstation/clinicsync/pkg/subscriptions"
	"github.com/agentstation/clinicsync/pkg/transport"
)

// Option is a function that configures a Client
type Option func(*config) error

// config holds the client settings collected from options
type config struct {
	address    string
	token      string
	source     transport.EventSource
	logger     *zerolog.Logger
	registerer prometheus.Registerer
	scheduler  reconnect.Scheduler
	reconnect  reconnect.Config
	topics     []string
	now        func() time.Time
}

func defaultConfig() *config {
	return &config{
		address:   constants.DefaultAddress,
		scheduler: reconnect.Real,
		reconnect: reconnect.DefaultConfig(),
		topics:    append([]string(nil), subscriptions.DefaultTopics...),
		now:       time.Now,
	}
}

// WithAddress sets the event server URL
func WithAddress(address string) Option {
	return func(c *config) error {
		if address == "" {
			return errors.NewValidationError("address", address, "cannot be empty")
		}
		c.address = address
		return nil
	}
}

// WithToken authenticates the default websocket transport with a bearer token
func WithToken(token string) Option {
	return func(c *config) error {
		c.token = token
		return nil
	}
}

// WithSource replaces the default websocket transport, for example with a
// scripted source for demos and tests
func WithSource(source transport.EventSource) Option {
	return func(c *config) error {
		if source == nil {
			return errors.NewValidationError("source", nil, "cannot be nil")
		}
		c.source = source
		return nil
	}
}

// WithLogger sets the client logger
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithRegisterer registers client metrics with reg. Without it no metrics
// are recorded.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) error {
		c.registerer = reg
		return nil
	}
}

// WithScheduler sets the scheduler used for reconnect delays
func WithScheduler(s reconnect.Scheduler) Option {
	return func(c *config) error {
		if s == nil {
			return errors.NewValidationError("scheduler", nil, "cannot be nil")
		}
		c.scheduler = s
		return nil
	}
}

// WithReconnect sets the reconnect policy parameters
func WithReconnect(cfg reconnect.Config) Option {
	return func(c *config) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.reconnect = cfg
		return nil
	}
}

// WithTopics replaces the initial channel set
func WithTopics(topics ...string) Option {
	return func(c *config) error {
		c.topics = append([]string(nil), topics...)
		return nil
	}
}

// WithClock sets the clock used for receive timestamps and status times
func WithClock(now func() time.Time) Option {
	return func(c *config) error {
		if now == nil {
			return errors.NewValidationError("clock", nil, "cannot be nil")
		}
		c.now = now
		return nil
	}
}
