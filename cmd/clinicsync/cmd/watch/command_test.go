package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/clinicsync"
	"github.com/agentstation/clinicsync/cmd/application"
	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/logging"
	"github.com/agentstation/clinicsync/pkg/reconnect"
	"github.com/agentstation/clinicsync/pkg/transport"
)

func mockApp(t *testing.T, src transport.EventSource, policy reconnect.Config, format string) *application.Mock {
	t.Helper()
	client, err := clinicsync.New(
		clinicsync.WithAddress("scripted://watch"),
		clinicsync.WithSource(src),
		clinicsync.WithReconnect(policy),
		clinicsync.WithLogger(logging.NewNopLogger()),
		clinicsync.WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	t.Cleanup(client.Dispose)

	return &application.Mock{
		ClientFunc: func() (clinicsync.Client, error) { return client, nil },
		Format:     format,
	}
}

func TestRunPrintsViewsAfterDuration(t *testing.T) {
	script := &transport.Script{Name: "watch", Steps: []transport.Step{
		{Frame: []byte(`{"kind":"queue.updated","payload":{"departmentId":"ent","entries":[{"patientId":"p1","token":"E-1","waitTime":7}]}}`)},
	}}
	src := transport.NewScripted(script, transport.WithScriptedLogger(logging.NewNopLogger()))
	app := mockApp(t, src, reconnect.DefaultConfig(), "json")

	var buf bytes.Buffer
	opts := &Options{Duration: 200 * time.Millisecond, Views: []string{"queue"}}
	require.NoError(t, Run(context.Background(), app, opts, &buf))

	var queue map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &queue))
	assert.Equal(t, "ent", queue["departmentId"])
	assert.Len(t, queue["entries"], 1)
}

func TestRunStopsWhenRetriesExhausted(t *testing.T) {
	src := transport.NewScripted(nil,
		transport.WithRefusals(100),
		transport.WithScriptedLogger(logging.NewNopLogger()),
	)
	policy := reconnect.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, Growth: reconnect.Linear}
	app := mockApp(t, src, policy, "json")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var buf bytes.Buffer
	err := Run(ctx, app, &Options{Views: []string{"status"}, ExitOnFatal: true}, &buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRetriesExhausted)
	assert.Contains(t, buf.String(), `"fatal": true`)
}

func TestRunRejectsUnknownView(t *testing.T) {
	app := &application.Mock{}
	err := Run(context.Background(), app, &Options{Views: []string{"pharmacy"}}, &bytes.Buffer{})
	assert.True(t, errors.IsValidationError(err))
}

func TestPrintTableHeadings(t *testing.T) {
	app := mockApp(t, transport.NewScripted(nil), reconnect.DefaultConfig(), "table")
	client, err := app.Client()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, "table", client, []string{"status", "stats"}))
	assert.Contains(t, buf.String(), "# status")
	assert.Contains(t, buf.String(), "# stats")
	assert.Contains(t, buf.String(), "disconnected")
}
