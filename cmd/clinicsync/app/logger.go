package app

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/pkg/logging"
)

var logLevels = []string{"trace", "debug", "info", "warn", "error", "off"}

// NewLogger builds the CLI logger. An explicit log level beats -v and -q;
// -q beats -v when both are given.
func NewLogger(config *Config) zerolog.Logger {
	level := resolveLogLevel(config, os.Stderr)

	return logging.NewLoggerFromConfig(&logging.Config{
		Level:     level,
		Format:    config.LogFormat,
		Output:    config.LogOutput,
		NoColor:   config.NoColor,
		AddCaller: level == "debug" || level == "trace",
		Fields:    map[string]any{"source": config.Source},
	})
}

// resolveLogLevel picks the effective level and reports overrides to warn.
func resolveLogLevel(config *Config, warn io.Writer) string {
	switch {
	case config.LogLevel != "":
		if slices.Contains(logLevels, config.LogLevel) {
			return config.LogLevel
		}
		fmt.Fprintf(warn, "Warning: unknown log level %q (want one of %v), using info\n", config.LogLevel, logLevels)
		return "info"
	case config.Verbose && config.Quiet:
		fmt.Fprintln(warn, "Warning: --verbose and --quiet both set, using --quiet")
		return "warn"
	case config.Quiet:
		return "warn"
	case config.Verbose:
		return "debug"
	}
	return "info"
}
