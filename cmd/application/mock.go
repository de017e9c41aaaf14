package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync"
	"github.com/agentstation/clinicsync/internal/server"
)

var _ Application = (*Mock)(nil)

// Mock is an Application for command tests. Nil funcs return zero values,
// and a Nop logger when LoggerFunc is unset.
type Mock struct {
	ClientFunc       func() (clinicsync.Client, error)
	RegistryFunc     func() *prometheus.Registry
	ServerConfigFunc func() server.Config
	LoggerFunc       func() *zerolog.Logger
	Format           string
}

// Client implements Application.
func (m *Mock) Client() (clinicsync.Client, error) {
	if m.ClientFunc == nil {
		return nil, nil
	}
	return m.ClientFunc()
}

// Registry implements Application.
func (m *Mock) Registry() *prometheus.Registry {
	if m.RegistryFunc == nil {
		return nil
	}
	return m.RegistryFunc()
}

// ServerConfig implements Application.
func (m *Mock) ServerConfig() server.Config {
	if m.ServerConfigFunc == nil {
		return server.DefaultConfig()
	}
	return m.ServerConfigFunc()
}

// Logger implements Application.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc == nil {
		logger := zerolog.Nop()
		return &logger
	}
	return m.LoggerFunc()
}

// OutputFormat implements Application.
func (m *Mock) OutputFormat() string { return m.Format }

// Build implements Application.
func (m *Mock) Build() BuildInfo {
	return BuildInfo{Version: "test", Commit: "none", Date: "unknown", BuiltBy: "test"}
}
