package projections_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/logging"
	"github.com/agentstation/clinicsync/pkg/projections"
)

func TestQueueSnapshotAndCompletion(t *testing.T) {
	q := projections.NewQueue(logging.NewNopLogger())

	q.Apply(envelope(events.QueueUpdated, threePatients(), 0))
	s := q.Summary()
	assert.Equal(t, 3, s.TotalWaiting)
	assert.Equal(t, 0, s.Completed)
	assert.Equal(t, 30, s.LongestWait)
	assert.InDelta(t, 20.0, s.AvgWaitTime, 0.001)

	q.Apply(envelope(events.QueuePatientCompleted, events.PatientRef{PatientID: "p1"}, 1))
	s = q.Summary()
	assert.Equal(t, 2, s.TotalWaiting)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 20, s.LongestWait)
	assert.InDelta(t, 15.0, s.AvgWaitTime, 0.001)
}

func TestQueueUpdatedIsIdempotent(t *testing.T) {
	q := projections.NewQueue(logging.NewNopLogger())

	q.Apply(envelope(events.QueueUpdated, threePatients(), 0))
	first := q.Snapshot()
	q.Apply(envelope(events.QueueUpdated, threePatients(), 0))
	second := q.Snapshot()

	assert.Equal(t, first.Entries, second.Entries)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.DepartmentID, second.DepartmentID)
}

func TestQueueUpdatedReplacesEverything(t *testing.T) {
	q := projections.NewQueue(logging.NewNopLogger())
	q.Apply(envelope(events.QueueUpdated, threePatients(), 0))

	q.Apply(envelope(events.QueueUpdated, events.QueueSnapshot{Entries: []events.QueueEntry{
		{PatientID: "p9", Status: events.StatusCompleted},
	}}, 1))

	snap := q.Snapshot()
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "p9", snap.Entries[0].PatientID)
	assert.Equal(t, projections.QueueSummary{Completed: 1}, snap.Summary)
}

func TestQueuePatientAdded(t *testing.T) {
	q := projections.NewQueue(logging.NewNopLogger())
	q.Apply(envelope(events.QueueUpdated, threePatients(), 0))

	q.Apply(envelope(events.QueuePatientAdded, events.QueueEntry{PatientID: "p4", Status: events.StatusWaiting, WaitMinutes: 2}, 1))
	snap := q.Snapshot()
	require.Len(t, snap.Entries, 4)
	assert.Equal(t, "p4", snap.Entries[3].PatientID)
	assert.Equal(t, 4, snap.Summary.TotalWaiting)

	// an existing patient is replaced in place
	q.Apply(envelope(events.QueuePatientAdded, events.QueueEntry{PatientID: "p2", Name: "Ben R", Status: events.StatusWaiting, WaitMinutes: 21}, 2))
	snap = q.Snapshot()
	require.Len(t, snap.Entries, 4)
	assert.Equal(t, "Ben R", snap.Entries[1].Name)
}

func TestQueuePatientCalled(t *testing.T) {
	q := projections.NewQueue(logging.NewNopLogger())
	q.Apply(envelope(events.QueueUpdated, threePatients(), 0))

	q.Apply(envelope(events.QueuePatientCalled, events.PatientCalled{PatientID: "p2", Room: "4B", ProviderID: "dr-kim"}, 1))

	snap := q.Snapshot()
	called := snap.Entries[1]
	assert.Equal(t, events.StatusCalled, called.Status)
	assert.Equal(t, "4B", called.Room)
	assert.Equal(t, "dr-kim", called.ProviderID)
	assert.Equal(t, 2, snap.Summary.TotalWaiting)
}

func TestQueueUnknownPatientIsNoop(t *testing.T) {
	logger := logging.NewTestLogger(t)
	q := projections.NewQueue(logger.Logger)
	q.Apply(envelope(events.QueueUpdated, threePatients(), 0))
	before := q.Snapshot()

	q.Apply(envelope(events.QueuePatientCalled, events.PatientCalled{PatientID: "ghost"}, 1))
	q.Apply(envelope(events.QueuePatientCompleted, events.PatientRef{PatientID: "ghost"}, 2))

	assert.Equal(t, before, q.Snapshot())
	logger.AssertContains(t, "Patient not in queue")
	logger.AssertContains(t, `"patient_id":"ghost"`)
}

func TestQueueStatusTransitions(t *testing.T) {
	q := projections.NewQueue(logging.NewNopLogger())
	q.Apply(envelope(events.QueueUpdated, threePatients(), 0))

	q.Apply(envelope(events.QueueConsultationStarted, events.PatientRef{PatientID: "p1"}, 1))
	q.Apply(envelope(events.QueuePatientNoShow, events.PatientRef{PatientID: "p3"}, 2))

	s := q.Summary()
	assert.Equal(t, projections.QueueSummary{
		TotalWaiting:   1,
		AvgWaitTime:    20,
		LongestWait:    20,
		InConsultation: 1,
		NoShow:         1,
	}, s)
}

func TestQueueSnapshotIsIsolated(t *testing.T) {
	q := projections.NewQueue(logging.NewNopLogger())
	q.Apply(envelope(events.QueueUpdated, threePatients(), 0))

	snap := q.Snapshot()
	snap.Entries[0].Name = "mutated"

	assert.Equal(t, "Ana", q.Snapshot().Entries[0].Name)
}

func TestQueueVersionAndReset(t *testing.T) {
	q := projections.NewQueue(logging.NewNopLogger())
	assert.Equal(t, uint64(0), q.Version())

	q.Apply(envelope(events.QueueUpdated, threePatients(), 0))
	assert.Equal(t, uint64(1), q.Version())
	assert.Equal(t, t0, q.Snapshot().UpdatedAt)

	q.Reset()
	snap := q.Snapshot()
	assert.Empty(t, snap.Entries)
	assert.Equal(t, projections.QueueSummary{}, snap.Summary)
	assert.Equal(t, uint64(2), snap.Version)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, projections.QueueSummary{}, projections.Summarize(nil))
}
