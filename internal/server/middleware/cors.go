package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// CORSConfig lists what browsers on other origins may do with the dashboard API.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	AllowAll       bool
}

// DefaultCORSConfig lets any origin read views and open event streams.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key", "Last-Event-ID"},
		AllowAll:       true,
	}
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or "".
func (c CORSConfig) allowOrigin(origin string) string {
	if c.AllowAll || len(c.AllowedOrigins) == 0 || slices.Contains(c.AllowedOrigins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(c.AllowedOrigins, origin) {
		return origin
	}
	return ""
}

// CORS sets cross-origin headers and answers preflight requests with 204.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			switch allowed := config.allowOrigin(r.Header.Get("Origin")); allowed {
			case "":
			case "*":
				h.Set("Access-Control-Allow-Origin", "*")
			default:
				h.Set("Access-Control-Allow-Origin", allowed)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
