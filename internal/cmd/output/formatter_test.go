package output

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/projections"
	"github.com/agentstation/clinicsync/pkg/status"
)

func sampleQueue() projections.QueueState {
	entries := []events.QueueEntry{
		{PatientID: "p1", Name: "Ana", Token: "A-001", Priority: events.PriorityUrgent, Status: events.StatusWaiting, WaitMinutes: 12},
		{PatientID: "p2", Name: "Ben", Token: "A-002", Priority: events.PriorityNormal, Status: events.StatusInConsultation, Room: "4B"},
	}
	return projections.QueueState{
		Meta:         projections.Meta{Version: 3},
		DepartmentID: "cardiology",
		Entries:      entries,
		Summary:      projections.Summarize(entries),
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"", "", false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestTableFormatterView(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, QueueView(sampleQueue())))

	out := strings.ToUpper(buf.String())
	assert.Contains(t, out, "TOKEN")
	assert.Contains(t, out, "A-001")
	assert.Contains(t, out, "URGENT")
	assert.Contains(t, out, "12M")
	assert.Contains(t, out, "4B")
}

func TestJSONFormatterUsesValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON).Format(&buf, QueueView(sampleQueue())))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "cardiology", got["departmentId"])
	assert.EqualValues(t, 3, got["version"])
	summary := got["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["totalWaiting"])
}

func TestYAMLFormatterStatus(t *testing.T) {
	st := status.Status{
		Phase:     status.Reconnecting,
		Attempt:   2,
		LastError: errors.ErrNotConnected,
	}

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatYAML).Format(&buf, StatusView(st)))

	out := buf.String()
	assert.Contains(t, out, "phase: reconnecting")
	assert.Contains(t, out, "attempt: 2")
	assert.Contains(t, out, "lastError: not connected")
}

func TestTableFormatterStructFallback(t *testing.T) {
	type row struct {
		BedID  string `json:"bed_id"`
		Status string
	}

	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(&buf, []row{{"icu-01", "occupied"}}))
	out := strings.ToUpper(buf.String())
	assert.Contains(t, out, "BED ID")
	assert.Contains(t, out, "ICU-01")
}

func TestFormatterFunc(t *testing.T) {
	var seen any
	f := FormatterFunc(func(_ io.Writer, data any) error {
		seen = data
		return nil
	})
	require.NoError(t, f.Format(io.Discard, 42))
	assert.Equal(t, 42, seen)
}

func TestStatsViewBeforeSnapshot(t *testing.T) {
	view := StatsView(projections.StatsState{})
	assert.Empty(t, view.Table().Rows)

	view = StatsView(projections.StatsState{Stats: &events.DashboardStats{BedOccupancy: 0.75}})
	assert.Contains(t, view.Table().Rows, []string{"Bed occupancy", "75%"})
}

func TestFramesView(t *testing.T) {
	view := FramesView([]FrameResult{
		{Index: 0, Kind: events.QueueUpdated, Valid: true},
		{Index: 1, Valid: false, Reason: "malformed_frame", Error: "bad"},
	})
	rows := view.Table().Rows
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"0", "queue.updated", "yes", "-", "-"}, rows[0])
	assert.Equal(t, "no", rows[1][2])
}

func TestQueueSummaryView(t *testing.T) {
	view := QueueSummaryView(sampleQueue().Summary)
	assert.Contains(t, view.Table().Rows, []string{"Longest wait", "12m"})
	assert.Contains(t, view.Table().Rows, []string{"In consultation", "1"})
}
