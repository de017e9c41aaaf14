package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores logger in ctx. A nil logger stores the process-wide one.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or the process-wide logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok && l != nil {
			return l
		}
	}
	return Default()
}

// WithFields returns ctx carrying a child of its logger with fields attached.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	l := FromContext(ctx).With().Fields(fields).Logger()
	return WithLogger(ctx, &l)
}

// WithAddress tags the context logger with the event endpoint.
func WithAddress(ctx context.Context, address string) context.Context {
	return WithFields(ctx, map[string]any{"address": address})
}

// WithCommand tags the context logger with the CLI command name.
func WithCommand(ctx context.Context, command string) context.Context {
	return WithFields(ctx, map[string]any{"command": command})
}
