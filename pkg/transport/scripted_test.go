package transport_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/logging"
	"github.com/agentstation/clinicsync/pkg/transport"
)

func TestParseScript(t *testing.T) {
	script, err := transport.ParseScript([]byte(`
name: short
steps:
  - frame:
      kind: alert.dismissed
      payload:
        id: a1
  - delay: 10ms
  - raw: 'not json'
  - close: server restart
`))
	require.NoError(t, err)
	assert.Equal(t, "short", script.Name)
	require.Len(t, script.Steps, 4)
	assert.JSONEq(t, `{"kind":"alert.dismissed","payload":{"id":"a1"}}`, string(script.Steps[0].Frame))
	assert.Equal(t, 10*time.Millisecond, script.Steps[1].Delay)
	assert.Equal(t, "not json", string(script.Steps[2].Frame))
	assert.Equal(t, "server restart", script.Steps[3].Close)
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "steps: [\n"},
		{"bad delay", "steps:\n  - delay: soon\n"},
		{"empty step", "steps:\n  - {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := transport.ParseScript([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDemoScript(t *testing.T) {
	script := transport.DemoScript()
	assert.Equal(t, "demo", script.Name)
	assert.NotEmpty(t, script.Steps)
}

func TestScriptedPlayback(t *testing.T) {
	script := &transport.Script{Name: "t", Steps: []transport.Step{
		{Frame: []byte("one")},
		{Delay: time.Millisecond},
		{Frame: []byte("two")},
		{Close: "bye"},
	}}
	src := transport.NewScripted(script, transport.WithScriptedLogger(logging.NewNopLogger()))
	rec := newRecorder()

	src.Open("scripted://demo", rec)
	rec.waitOpen(t)
	assert.Equal(t, "one", string(rec.waitMessage(t)))
	assert.Equal(t, "two", string(rec.waitMessage(t)))

	err := rec.waitClose(t)
	assert.ErrorContains(t, err, "bye")
	assert.False(t, src.IsOpen())
	assert.Equal(t, []string{"scripted://demo"}, src.Opens())
}

func TestScriptedRefusals(t *testing.T) {
	src := transport.NewScripted(nil, transport.WithRefusals(1), transport.WithScriptedLogger(logging.NewNopLogger()))
	rec := newRecorder()

	src.Open("x", rec)
	err := rec.waitClose(t)
	assert.ErrorIs(t, err, transport.ErrRefused)

	src.Open("x", rec)
	rec.waitOpen(t)
	assert.True(t, src.IsOpen())
}

func TestScriptedSendDeliverDrop(t *testing.T) {
	src := transport.NewScripted(nil, transport.WithScriptedLogger(logging.NewNopLogger()))
	rec := newRecorder()

	assert.ErrorIs(t, src.Send([]byte("a")), errors.ErrNotConnected)
	assert.False(t, src.Deliver([]byte("a")))

	src.Open("x", rec)
	rec.waitOpen(t)

	require.NoError(t, src.Send([]byte("b")))
	assert.True(t, src.Deliver([]byte("c")))
	assert.Equal(t, "c", string(rec.waitMessage(t)))

	assert.True(t, src.Drop(errors.New("network down")))
	assert.ErrorContains(t, rec.waitClose(t), "network down")
	assert.False(t, src.Drop(errors.New("again")))

	sent := src.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "b", string(sent[0]))
}

func TestScriptedCloseStopsPlayback(t *testing.T) {
	script := &transport.Script{Steps: []transport.Step{
		{Delay: 50 * time.Millisecond},
		{Frame: []byte("late")},
		{Close: "late close"},
	}}
	src := transport.NewScripted(script, transport.WithScriptedLogger(logging.NewNopLogger()))
	rec := newRecorder()

	src.Open("x", rec)
	rec.waitOpen(t)
	src.Close()

	select {
	case m := <-rec.messages:
		t.Fatalf("frame %q delivered after Close", m)
	case <-time.After(150 * time.Millisecond):
	}
	rec.expectNoClose(t, 10*time.Millisecond)
}
