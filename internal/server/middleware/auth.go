package middleware

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/internal/server/response"
)

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	Enabled     bool
	APIKey      string
	HeaderName  string
	PublicPaths []string
}

// DefaultAuthConfig returns a disabled auth config with the health
// endpoints public.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		HeaderName:  "X-API-Key",
		PublicPaths: []string{"/health", "/metrics"},
	}
}

// Auth rejects requests outside PublicPaths that lack the configured key.
// The key is read from HeaderName, then from an Authorization bearer token.
func Auth(config AuthConfig, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled || slices.Contains(config.PublicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := extractAPIKey(r, config.HeaderName)
			if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(config.APIKey)) != 1 {
				logger.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Bool("key_provided", key != "").
					Msg("Authentication failed")
				response.Unauthorized(w, "Invalid or missing API key",
					"Provide a valid API key in the "+config.HeaderName+" header")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractAPIKey(r *http.Request, header string) string {
	if key := r.Header.Get(header); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return token
	}
	return ""
}
