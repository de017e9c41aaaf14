package projections

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/logging"
)

// QueueSummary is derived from the queue entries. It is recomputed on every
// change and never updated on its own.
type QueueSummary struct {
	TotalWaiting   int     `json:"totalWaiting" yaml:"totalWaiting"`
	AvgWaitTime    float64 `json:"avgWaitTime" yaml:"avgWaitTime"`
	LongestWait    int     `json:"longestWait" yaml:"longestWait"`
	InConsultation int     `json:"inConsultation" yaml:"inConsultation"`
	Completed      int     `json:"completed" yaml:"completed"`
	NoShow         int     `json:"noShow" yaml:"noShow"`
}

// Summarize computes the summary for a list of entries. Wait statistics only
// cover patients still waiting.
func Summarize(entries []events.QueueEntry) QueueSummary {
	var s QueueSummary
	totalWait := 0
	for _, e := range entries {
		switch e.Status {
		case events.StatusWaiting:
			s.TotalWaiting++
			totalWait += e.WaitMinutes
			s.LongestWait = max(s.LongestWait, e.WaitMinutes)
		case events.StatusInConsultation:
			s.InConsultation++
		case events.StatusCompleted:
			s.Completed++
		case events.StatusNoShow:
			s.NoShow++
		}
	}
	if s.TotalWaiting > 0 {
		s.AvgWaitTime = float64(totalWait) / float64(s.TotalWaiting)
	}
	return s
}

// QueueState is a read-only snapshot of the queue.
type QueueState struct {
	Meta `yaml:",inline"`
	DepartmentID string              `json:"departmentId,omitempty" yaml:"departmentId,omitempty"`
	Entries      []events.QueueEntry `json:"entries" yaml:"entries"`
	Summary      QueueSummary        `json:"summary" yaml:"summary"`
}

type queueValue struct {
	departmentID string
	entries      []events.QueueEntry
	summary      QueueSummary
}

// Queue projects queue events onto an ordered entry list.
type Queue struct {
	logger *zerolog.Logger
	state  cell[queueValue]
}

// NewQueue creates an empty queue projection.
func NewQueue(logger *zerolog.Logger) *Queue {
	if logger == nil {
		logger = logging.Default()
	}
	return &Queue{logger: logging.Component(logger, "queue")}
}

// Name implements router.Projection.
func (q *Queue) Name() string { return "queue" }

// Kinds implements router.Projection.
func (q *Queue) Kinds() []events.Kind {
	return []events.Kind{
		events.QueueUpdated,
		events.QueuePatientAdded,
		events.QueuePatientCalled,
		events.QueueConsultationStarted,
		events.QueuePatientCompleted,
		events.QueuePatientNoShow,
	}
}

// Apply implements router.Projection.
func (q *Queue) Apply(env events.Envelope) {
	cur := q.state.load().value

	var (
		next queueValue
		ok   bool
	)
	switch p := env.Payload.(type) {
	case events.QueueSnapshot:
		next, ok = replaceQueue(p), true
	case events.QueueEntry:
		next, ok = addPatient(cur, p), true
	case events.PatientCalled:
		next, ok = callPatient(cur, p)
	case events.PatientRef:
		status, known := refStatus[env.Kind]
		if !known {
			q.logger.Error().Str("kind", string(env.Kind)).Msg("Patient reference for unexpected kind")
			return
		}
		next, ok = setStatus(cur, p.PatientID, status)
	default:
		q.logger.Error().Str("kind", string(env.Kind)).Msgf("Unexpected payload %T", env.Payload)
		return
	}

	if !ok {
		q.logger.Warn().Str("kind", string(env.Kind)).Str("patient_id", patientID(env.Payload)).Msg("Patient not in queue, ignoring event")
		return
	}
	q.state.commit(next, env.OccurredAt)
}

var refStatus = map[events.Kind]events.QueueStatus{
	events.QueueConsultationStarted: events.StatusInConsultation,
	events.QueuePatientCompleted:    events.StatusCompleted,
	events.QueuePatientNoShow:       events.StatusNoShow,
}

func patientID(payload any) string {
	switch p := payload.(type) {
	case events.PatientCalled:
		return p.PatientID
	case events.PatientRef:
		return p.PatientID
	}
	return ""
}

func withEntries(dept string, entries []events.QueueEntry) queueValue {
	return queueValue{departmentID: dept, entries: entries, summary: Summarize(entries)}
}

func replaceQueue(s events.QueueSnapshot) queueValue {
	return withEntries(s.DepartmentID, append([]events.QueueEntry(nil), s.Entries...))
}

// addPatient appends e, or replaces an existing entry with the same patient
// in place so a patient is never listed twice.
func addPatient(cur queueValue, e events.QueueEntry) queueValue {
	entries := make([]events.QueueEntry, 0, len(cur.entries)+1)
	replaced := false
	for _, existing := range cur.entries {
		if existing.PatientID == e.PatientID {
			entries = append(entries, e)
			replaced = true
			continue
		}
		entries = append(entries, existing)
	}
	if !replaced {
		entries = append(entries, e)
	}
	return withEntries(cur.departmentID, entries)
}

func updateEntry(cur queueValue, id string, fn func(*events.QueueEntry)) (queueValue, bool) {
	idx := -1
	for i := range cur.entries {
		if cur.entries[i].PatientID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return cur, false
	}
	entries := append([]events.QueueEntry(nil), cur.entries...)
	fn(&entries[idx])
	return withEntries(cur.departmentID, entries), true
}

func callPatient(cur queueValue, p events.PatientCalled) (queueValue, bool) {
	return updateEntry(cur, p.PatientID, func(e *events.QueueEntry) {
		e.Status = events.StatusCalled
		if p.Room != "" {
			e.Room = p.Room
		}
		if p.ProviderID != "" {
			e.ProviderID = p.ProviderID
		}
	})
}

func setStatus(cur queueValue, id string, status events.QueueStatus) (queueValue, bool) {
	return updateEntry(cur, id, func(e *events.QueueEntry) {
		e.Status = status
	})
}

// Snapshot returns the current queue. The entry slice is a copy.
func (q *Queue) Snapshot() QueueState {
	c := q.state.load()
	return QueueState{
		Meta:         c.meta(),
		DepartmentID: c.value.departmentID,
		Entries:      append([]events.QueueEntry{}, c.value.entries...),
		Summary:      c.value.summary,
	}
}

// Summary returns the current derived summary.
func (q *Queue) Summary() QueueSummary {
	return q.state.load().value.summary
}

// Version returns the number of committed changes.
func (q *Queue) Version() uint64 {
	return q.state.load().version
}

// Reset empties the queue.
func (q *Queue) Reset() {
	q.state.commit(queueValue{}, time.Time{})
}
