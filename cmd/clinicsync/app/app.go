// Package app provides the application context and dependency management
// for the clinicsync CLI. It centralizes configuration, logging, the
// metrics registry and the lifecycle of the sync client.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync"
	"github.com/agentstation/clinicsync/cmd/application"
	"github.com/agentstation/clinicsync/internal/server"
	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/logging"
	"github.com/agentstation/clinicsync/pkg/transport"
)

var _ application.Application = (*App)(nil)

// App represents the clinicsync application with all its dependencies.
type App struct {
	build application.BuildInfo

	config   *Config
	logger   *zerolog.Logger
	registry *prometheus.Registry

	// Client instance (lazy-initialized, singleton)
	mu     sync.Mutex
	client clinicsync.Client
}

// New creates a new App instance with the given version information.
// The app is initialized with configuration from the environment that can
// be customized using functional options.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		build:    application.BuildInfo{Version: version, Commit: commit, Date: date, BuiltBy: builtBy},
		registry: prometheus.NewRegistry(),
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Build returns the version information stamped into the binary.
func (a *App) Build() application.BuildInfo { return a.build }

// Config returns the application configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// Registry returns the metrics registry shared by the client and /metrics.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string { return a.config.Format }

// ServerConfig returns the HTTP surface configuration.
func (a *App) ServerConfig() server.Config { return a.config.Server }

// Client returns the sync client, creating it on first use.
func (a *App) Client() (clinicsync.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	opts, err := a.clientOptions()
	if err != nil {
		return nil, err
	}

	client, err := clinicsync.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	a.client = client
	return client, nil
}

// clientOptions maps the configuration onto client options.
func (a *App) clientOptions() ([]clinicsync.Option, error) {
	policy, err := a.config.Reconnect()
	if err != nil {
		return nil, err
	}

	opts := []clinicsync.Option{
		clinicsync.WithAddress(a.config.Address),
		clinicsync.WithToken(a.config.Token),
		clinicsync.WithLogger(a.logger),
		clinicsync.WithRegisterer(a.registry),
		clinicsync.WithReconnect(policy),
		clinicsync.WithTopics(a.config.Topics...),
	}

	switch a.config.Source {
	case SourceWebSocket, "":
		// the client builds its own websocket transport from the token
	case SourceScripted:
		script := transport.DemoScript()
		if a.config.Script != "" {
			if script, err = transport.LoadScript(a.config.Script); err != nil {
				return nil, err
			}
		}
		opts = append(opts, clinicsync.WithSource(transport.NewScripted(script,
			transport.WithScriptedLogger(logging.Component(a.logger, "transport")),
		)))
	default:
		return nil, errors.NewConfigError("source",
			fmt.Sprintf("unknown source %q: must be websocket or scripted", a.config.Source), errors.ErrInvalidInput)
	}

	return opts, nil
}

// Shutdown disposes the client if one was created.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	client := a.client
	a.client = nil
	a.mu.Unlock()

	if client != nil {
		client.Dispose()
	}
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithClient sets a prebuilt client (useful for testing).
func WithClient(client clinicsync.Client) Option {
	return func(a *App) error {
		a.client = client
		return nil
	}
}
