package server

import (
	"net/http"

	"github.com/agentstation/clinicsync/internal/metrics"
	"github.com/agentstation/clinicsync/internal/server/handlers"
	"github.com/agentstation/clinicsync/internal/server/middleware"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()

	h := handlers.New(
		s.client,
		s.cache,
		s.wsHub,
		s.sseBroadcaster,
		s.upgrader,
		s.greeting,
		s.logger,
	)

	s.registerRoutes(mux, h)

	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	prefix := s.config.PathPrefix

	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Public health endpoints
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET "+prefix+"/health", h.HandleHealth)
	mux.HandleFunc("GET "+prefix+"/ready", h.HandleReady)
	mux.HandleFunc("GET "+prefix+"/status", h.HandleStatus)

	// Views
	mux.HandleFunc("GET "+prefix+"/queue", h.HandleQueue)
	mux.HandleFunc("GET "+prefix+"/beds", h.HandleBeds)
	mux.HandleFunc("GET "+prefix+"/beds/{id}", h.HandleBed)
	mux.HandleFunc("GET "+prefix+"/alerts", h.HandleAlerts)
	mux.HandleFunc("GET "+prefix+"/appointments", h.HandleAppointments)
	mux.HandleFunc("GET "+prefix+"/stats", h.HandleStats)

	// Real-time endpoints
	mux.HandleFunc("GET "+prefix+"/updates/ws", h.HandleWebSocket)
	mux.HandleFunc("GET "+prefix+"/updates/stream", h.HandleSSE)

	if s.config.MetricsEnabled && s.gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(s.gatherer))
	}
}

// applyMiddleware wraps handler with middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cfg := s.config

	if cfg.RateLimit > 0 {
		// Validate has already rejected malformed entries.
		proxies, _ := middleware.ParseTrustedProxies(cfg.TrustedProxies)
		rateLimiter := middleware.NewRateLimiter(s.ctx, cfg.RateLimit, s.logger).TrustProxies(proxies)
		handler = middleware.RateLimit(rateLimiter)(handler)
	}

	if cfg.AuthEnabled {
		authConfig := middleware.DefaultAuthConfig()
		authConfig.Enabled = true
		authConfig.APIKey = cfg.APIKey
		authConfig.HeaderName = cfg.AuthHeader
		authConfig.PublicPaths = append(authConfig.PublicPaths, cfg.PathPrefix+"/health", cfg.PathPrefix+"/ready")
		handler = middleware.Auth(authConfig, s.logger)(handler)
	}

	if cfg.CORSEnabled {
		corsConfig := middleware.DefaultCORSConfig()
		if len(cfg.CORSOrigins) > 0 {
			corsConfig.AllowedOrigins = cfg.CORSOrigins
			corsConfig.AllowAll = false
		}
		handler = middleware.CORS(corsConfig)(handler)
	}

	// Logging and recovery (always enabled)
	return middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.Logger(s.logger),
	)(handler)
}
