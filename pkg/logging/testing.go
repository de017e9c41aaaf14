package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// TestLogger captures JSON log lines at trace level for assertions.
// It is safe to log from the client's loop goroutine while a test reads.
type TestLogger struct {
	*zerolog.Logger

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewTestLogger returns a capturing logger. The global level is lowered to
// trace for the duration of the test.
func NewTestLogger(t testing.TB) *TestLogger {
	t.Helper()

	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	tl := &TestLogger{}
	l := zerolog.New(tl).Level(zerolog.TraceLevel).With().Timestamp().Logger()
	tl.Logger = &l
	return tl
}

// Write implements io.Writer for the capture buffer.
func (tl *TestLogger) Write(p []byte) (int, error) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.buf.Write(p)
}

// Output returns everything logged so far.
func (tl *TestLogger) Output() string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.buf.String()
}

// Lines returns the captured output split into log lines.
func (tl *TestLogger) Lines() []string {
	out := strings.TrimSpace(tl.Output())
	if out == "" {
		return []string{}
	}
	return strings.Split(out, "\n")
}

// Entries decodes each captured line. Lines that are not JSON are skipped.
func (tl *TestLogger) Entries() []map[string]any {
	var entries []map[string]any
	for _, line := range tl.Lines() {
		var e map[string]any
		if json.Unmarshal([]byte(line), &e) == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

// Contains reports whether substr appears anywhere in the output.
func (tl *TestLogger) Contains(substr string) bool {
	return strings.Contains(tl.Output(), substr)
}

// AssertContains fails t unless substr was logged.
func (tl *TestLogger) AssertContains(t testing.TB, substr string) {
	t.Helper()
	if !tl.Contains(substr) {
		t.Errorf("log output does not contain %q\noutput:\n%s", substr, tl.Output())
	}
}

// AssertNotContains fails t if substr was logged.
func (tl *TestLogger) AssertNotContains(t testing.TB, substr string) {
	t.Helper()
	if tl.Contains(substr) {
		t.Errorf("log output should not contain %q\noutput:\n%s", substr, tl.Output())
	}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
