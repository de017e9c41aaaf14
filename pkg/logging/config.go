package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/pkg/constants"
)

// Config describes how a logger is built.
type Config struct {
	Level      string         // trace, debug, info, warn, error, off
	Format     string         // json, console or auto
	Output     string         // stderr, stdout, discard or a file path
	TimeFormat string         // console timestamps: kitchen, rfc3339, rfc3339nano, stamp
	NoColor    bool           // plain console output
	AddCaller  bool           // file:line on every event; implied at debug and below
	Fields     map[string]any // attached to every event
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "auto",
		Output:     "stderr",
		TimeFormat: "kitchen",
		NoColor:    os.Getenv("NO_COLOR") != "",
	}
}

// NewLoggerFromConfig builds a logger and sets zerolog's global level to match.
// A nil cfg means DefaultConfig.
func NewLoggerFromConfig(cfg *Config) zerolog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level := levelOf(cfg.Level)
	zerolog.SetGlobalLevel(level)

	ctx := zerolog.New(sink(cfg)).Level(level).With().Timestamp()
	if cfg.AddCaller || level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	if len(cfg.Fields) > 0 {
		ctx = ctx.Fields(cfg.Fields)
	}
	return ctx.Logger()
}

// Configure replaces the process-wide logger with one built from cfg.
func Configure(cfg *Config) {
	SetDefault(NewLoggerFromConfig(cfg))
}

// sink opens the configured output and wraps it for console rendering when asked,
// or when format is auto and the output is a terminal.
func sink(cfg *Config) io.Writer {
	var out io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	case "discard", "none":
		return io.Discard
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, constants.FilePermissions)
		if err != nil {
			out = os.Stderr
		} else {
			out = f
		}
	}

	console := false
	switch strings.ToLower(cfg.Format) {
	case "console", "pretty", "text":
		console = true
	case "", "auto":
		if f, ok := out.(*os.File); ok {
			console = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}
	if !console {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: timeLayout(cfg.TimeFormat), NoColor: cfg.NoColor}
}

var levelAliases = map[string]zerolog.Level{
	"":         zerolog.InfoLevel,
	"warning":  zerolog.WarnLevel,
	"off":      zerolog.Disabled,
	"none":     zerolog.Disabled,
	"disabled": zerolog.Disabled,
}

// levelOf maps a level name onto zerolog; unknown names fall back to info.
func levelOf(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if l, ok := levelAliases[name]; ok {
		return l
	}
	l, err := zerolog.ParseLevel(name)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

func timeLayout(name string) string {
	switch strings.ToLower(name) {
	case "rfc3339":
		return time.RFC3339
	case "rfc3339nano":
		return time.RFC3339Nano
	case "stamp":
		return time.Stamp
	}
	return time.Kitchen
}
