package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/pkg/logging"
)

func TestDefaultLogger(t *testing.T) {
	original := *logging.Default()
	defer logging.SetDefault(original)

	buf := &bytes.Buffer{}
	logger := zerolog.New(buf).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	logging.SetDefault(logger)

	logging.Info().Msg("info message")
	logging.Warn().Msg("warning message")

	output := buf.String()
	if !strings.Contains(output, "info message") {
		t.Errorf("Expected info message in output, got: %s", output)
	}
	if !strings.Contains(output, "warning message") {
		t.Errorf("Expected warning message in output, got: %s", output)
	}
}

func TestContextLogger(t *testing.T) {
	testLogger := logging.NewTestLogger(t)

	ctx := logging.WithLogger(context.Background(), testLogger.Logger)
	ctx = logging.WithAddress(ctx, "wss://clinic.local/ws")
	ctx = logging.WithCommand(ctx, "watch")

	logging.FromContext(ctx).Info().Msg("connected")

	testLogger.AssertContains(t, "wss://clinic.local/ws")
	testLogger.AssertContains(t, `"command":"watch"`)
	testLogger.AssertContains(t, "connected")
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	//nolint:staticcheck // nil context is exactly what is under test
	if logging.FromContext(nil) != logging.Default() {
		t.Error("expected default logger for nil context")
	}
	if logging.FromContext(context.Background()) != logging.Default() {
		t.Error("expected default logger for empty context")
	}
}

func TestComponent(t *testing.T) {
	testLogger := logging.NewTestLogger(t)

	logging.Component(testLogger.Logger, "reconnect").Warn().Msg("retry scheduled")

	testLogger.AssertContains(t, `"component":"reconnect"`)
	if len(testLogger.Lines()) != 1 {
		t.Errorf("expected 1 line, got %d", len(testLogger.Lines()))
	}
}

func TestWithFieldsAndEntries(t *testing.T) {
	testLogger := logging.NewTestLogger(t)

	ctx := logging.WithLogger(context.Background(), testLogger.Logger)
	ctx = logging.WithFields(ctx, map[string]any{"attempt": 3, "topic": "beds"})
	logging.FromContext(ctx).Debug().Msg("resubscribed")

	entries := testLogger.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0]["topic"] != "beds" || entries[0]["attempt"] != float64(3) {
		t.Errorf("unexpected fields: %v", entries[0])
	}
	if entries[0]["level"] != "debug" {
		t.Errorf("level = %v, want debug", entries[0]["level"])
	}
}
