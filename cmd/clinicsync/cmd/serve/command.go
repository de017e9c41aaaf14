// Package serve implements the serve command.
package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/clinicsync/cmd/application"
	"github.com/agentstation/clinicsync/internal/server"
	"github.com/agentstation/clinicsync/pkg/constants"
	"github.com/agentstation/clinicsync/pkg/errors"
)

// NewCommand creates the serve command.
func NewCommand(app application.Application) *cobra.Command {
	cfg := app.ServerConfig()

	cmd := &cobra.Command{
		Use:     "serve",
		GroupID: "core",
		Short:   "Serve the dashboard views over HTTP",
		Long: `Serve connects the sync client and exposes its views over HTTP.

Endpoints (under the path prefix, default /api/v1):
  GET /queue, /beds, /beds/{id}, /alerts, /appointments, /stats
  GET /status, /health, /ready
  GET /updates/ws       WebSocket feed of view changes
  GET /updates/stream   Server-Sent Events feed of view changes
  GET /metrics          Prometheus metrics (outside the prefix)`,
		Example: `  clinicsync serve
  clinicsync serve --source scripted --port 9000
  clinicsync serve --auth --api-key secret --cors-origins https://dash.example`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.Context(), app, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Host, "host", cfg.Host, "bind address")
	cmd.Flags().IntVarP(&cfg.Port, "port", "p", cfg.Port, "server port")
	cmd.Flags().StringVar(&cfg.PathPrefix, "prefix", cfg.PathPrefix, "API path prefix")
	cmd.Flags().BoolVar(&cfg.CORSEnabled, "cors", cfg.CORSEnabled, "enable CORS for all origins")
	cmd.Flags().StringSliceVar(&cfg.CORSOrigins, "cors-origins", cfg.CORSOrigins, "allowed CORS origins (comma-separated)")
	cmd.Flags().BoolVar(&cfg.AuthEnabled, "auth", cfg.AuthEnabled, "require an API key")
	cmd.Flags().StringVar(&cfg.AuthHeader, "auth-header", cfg.AuthHeader, "authentication header name")
	cmd.Flags().StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "API key accepted when --auth is set")
	cmd.Flags().IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "requests per minute per IP (0 to disable)")
	cmd.Flags().StringSliceVar(&cfg.TrustedProxies, "trusted-proxies", cfg.TrustedProxies, "proxy IPs or CIDRs whose X-Forwarded-For is honoured")
	cmd.Flags().DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "view cache TTL")
	cmd.Flags().BoolVar(&cfg.MetricsEnabled, "metrics", cfg.MetricsEnabled, "enable the /metrics endpoint")

	return cmd
}

// Run connects the client, serves it until ctx is done and shuts down.
func Run(ctx context.Context, app application.Application, cfg server.Config) error {
	client, err := app.Client()
	if err != nil {
		return err
	}

	var gatherer prometheus.Gatherer
	if reg := app.Registry(); reg != nil {
		gatherer = reg
	}

	srv, err := server.New(client, cfg, app.Logger(), gatherer)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	httpServer := srv.HTTPServer()
	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", httpServer.Addr, err)
	}

	srv.Start()
	if err := client.Connect(); err != nil {
		_ = listener.Close()
		_ = srv.Shutdown(context.Background())
		return fmt.Errorf("connecting: %w", err)
	}

	return Serve(ctx, httpServer, listener, srv, app.Logger())
}

// Serve runs httpServer on listener until ctx is done, then shuts down the
// HTTP server and the background services of srv.
func Serve(ctx context.Context, httpServer *http.Server, listener net.Listener, srv *server.Server, logger *zerolog.Logger) error {
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", listener.Addr().String()).Msg("Serving dashboard API")
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case err := <-serverErr:
		runErr = fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		logger.Info().Msg("Shutting down dashboard API")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	// Streams end when the background services stop, so stop them first.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Background services did not stop in time")
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("server forced to shutdown: %w", err)
	}
	return runErr
}
