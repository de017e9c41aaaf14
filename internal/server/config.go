package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/clinicsync/internal/server/middleware"
	"github.com/agentstation/clinicsync/pkg/errors"
)

// Config controls the dashboard HTTP surface started by `clinicsync serve`.
type Config struct {
	Host       string
	Port       int
	PathPrefix string // mounted in front of every view and stream route

	CORSEnabled bool
	CORSOrigins []string // empty means any origin

	AuthEnabled bool
	AuthHeader  string
	APIKey      string

	RateLimit int           // requests per minute per client IP, 0 disables
	// TrustedProxies are the IPs or CIDR ranges allowed to name the client
	// through X-Forwarded-For. Empty means the header is ignored.
	TrustedProxies []string
	CacheTTL  time.Duration // upper bound on a cached view body

	ReadTimeout  time.Duration
	WriteTimeout time.Duration // 0, since SSE and websocket feeds stay open
	IdleTimeout  time.Duration

	MetricsEnabled bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           8090,
		PathPrefix:     "/api/v1",
		AuthHeader:     "X-API-Key",
		RateLimit:      600,
		CacheTTL:       5 * time.Minute,
		ReadTimeout:    10 * time.Second,
		IdleTimeout:    2 * time.Minute,
		MetricsEnabled: true,
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate reports the first setting that would stop the server from serving.
func (c Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return errors.NewConfigError("server", "port", fmt.Errorf("port %d out of range", c.Port))
	case c.PathPrefix != "" && !strings.HasPrefix(c.PathPrefix, "/"):
		return errors.NewConfigError("server", "path_prefix", fmt.Errorf("prefix %q must start with /", c.PathPrefix))
	case c.AuthEnabled && c.APIKey == "":
		return errors.NewConfigError("server", "api_key", errors.New("auth is enabled but no API key is set"))
	case c.RateLimit < 0:
		return errors.NewConfigError("server", "rate_limit", fmt.Errorf("rate limit %d is negative", c.RateLimit))
	}
	if _, err := middleware.ParseTrustedProxies(c.TrustedProxies); err != nil {
		return errors.NewConfigError("server", "trusted_proxies", err)
	}
	return nil
}
