// Package logging wraps zerolog for the clinicsync client and its tools.
//
// The process-wide logger is built from CLINICSYNC_LOG_LEVEL and
// CLINICSYNC_LOG_FORMAT at start-up and can be replaced with Configure or
// SetDefault. Subsystems derive tagged children with Component:
//
//	log := logging.Component(nil, "router")
//	log.Debug().Str("kind", "queue.updated").Msg("Dispatched event")
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment variables read when the process-wide logger is first built.
const (
	EnvLevel  = "CLINICSYNC_LOG_LEVEL"
	EnvFormat = "CLINICSYNC_LOG_FORMAT"
)

var defaultLogger = NewLoggerFromConfig(envConfig())

// envConfig derives the start-up configuration from the environment.
func envConfig() *Config {
	cfg := DefaultConfig()
	if v := os.Getenv(EnvLevel); v != "" {
		cfg.Level = v
	} else if os.Getenv("DEBUG") != "" {
		cfg.Level = "debug"
	}
	if v := os.Getenv(EnvFormat); v != "" {
		cfg.Format = v
	}
	return cfg
}

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process-wide logger, including zerolog's global one.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// Component returns a child of parent tagged with a component name.
// A nil parent means the process-wide logger.
func Component(parent *zerolog.Logger, name string) *zerolog.Logger {
	if parent == nil {
		parent = Default()
	}
	l := parent.With().Str("component", name).Logger()
	return &l
}

// Info starts an info event on the process-wide logger.
func Info() *zerolog.Event { return defaultLogger.Info() }

// Warn starts a warning event on the process-wide logger.
func Warn() *zerolog.Event { return defaultLogger.Warn() }

// Debug starts a debug event on the process-wide logger.
func Debug() *zerolog.Event { return defaultLogger.Debug() }

// Error starts an error event on the process-wide logger.
func Error() *zerolog.Event { return defaultLogger.Error() }
