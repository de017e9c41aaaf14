package decode

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/clinicsync/cmd/application"
	"github.com/agentstation/clinicsync/internal/cmd/output"
	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/events"
)

const capture = `{"kind":"alert.dismissed","payload":{"id":"a1"}}

not json
{"kind":"lab.resultReady","payload":{}}
`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand(&application.Mock{Format: "json"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFrames(t *testing.T) {
	results := Frames([][]byte{
		[]byte(`{"kind":"queue.patientNoShow","payload":{"patientId":"p4"}}`),
		[]byte(`{"kind":"queue.patientNoShow"}`),
		[]byte(`{"kind":"pharmacy.refill","payload":{}}`),
	})
	require.Len(t, results, 3)

	assert.True(t, results[0].Valid)
	assert.Equal(t, events.QueuePatientNoShow, results[0].Kind)

	assert.False(t, results[1].Valid)
	assert.Equal(t, string(errors.MalformedFrame), results[1].Reason)

	assert.False(t, results[2].Valid)
	assert.Equal(t, string(errors.UnknownKind), results[2].Reason)
	assert.Equal(t, events.Kind("pharmacy.refill"), results[2].Kind)
}

func TestDecodeStdin(t *testing.T) {
	out, err := run(t, capture, "-")
	require.NoError(t, err)

	var results []output.FrameResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3, "blank lines are skipped")
	assert.True(t, results[0].Valid)
	assert.Equal(t, string(errors.MalformedFrame), results[1].Reason)
	assert.Equal(t, string(errors.UnknownKind), results[2].Reason)
}

func TestDecodeStrict(t *testing.T) {
	_, err := run(t, capture, "-", "--strict")
	require.ErrorIs(t, err, ErrInvalidFrames)
	assert.Contains(t, err.Error(), "2 of 3")
}

func TestDecodeScriptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ward.yaml")
	script := `name: ward
steps:
  - frame:
      kind: bed.statusChanged
      payload: {bedId: b1, wardId: w1, status: occupied}
  - delay: 10ms
  - raw: '{"kind":'
  - close: going away
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o600))

	out, err := run(t, "", path)
	require.NoError(t, err)

	var results []output.FrameResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, events.BedStatusChanged, results[0].Kind)
	assert.False(t, results[1].Valid)
}

func TestDecodeMissingFile(t *testing.T) {
	_, err := run(t, "", filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}
