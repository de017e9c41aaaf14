package projections

import (
	"maps"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/logging"
)

// AppointmentsState is a read-only snapshot of the appointment board,
// ordered by scheduled time.
type AppointmentsState struct {
	Meta `yaml:",inline"`
	Appointments []events.Appointment `json:"appointments" yaml:"appointments"`
}

// Appointments projects appointment events onto a board keyed by id.
type Appointments struct {
	logger *zerolog.Logger
	state  cell[map[string]events.Appointment]
}

// NewAppointments creates an empty appointment board.
func NewAppointments(logger *zerolog.Logger) *Appointments {
	if logger == nil {
		logger = logging.Default()
	}
	return &Appointments{logger: logging.Component(logger, "appointments")}
}

// Name implements router.Projection.
func (a *Appointments) Name() string { return "appointments" }

// Kinds implements router.Projection.
func (a *Appointments) Kinds() []events.Kind {
	return []events.Kind{events.AppointmentUpserted, events.AppointmentCancelled}
}

// Apply implements router.Projection.
func (a *Appointments) Apply(env events.Envelope) {
	cur := a.state.load().value

	switch p := env.Payload.(type) {
	case events.Appointment:
		next := make(map[string]events.Appointment, len(cur)+1)
		maps.Copy(next, cur)
		next[p.ID] = p
		a.state.commit(next, env.OccurredAt)

	case events.AppointmentRef:
		if _, ok := cur[p.ID]; !ok {
			a.logger.Debug().Str("appointment_id", p.ID).Msg("Cancelled appointment not on board")
			return
		}
		next := make(map[string]events.Appointment, len(cur))
		maps.Copy(next, cur)
		delete(next, p.ID)
		a.state.commit(next, env.OccurredAt)

	default:
		a.logger.Error().Str("kind", string(env.Kind)).Msgf("Unexpected payload %T", env.Payload)
	}
}

// Snapshot returns the board.
func (a *Appointments) Snapshot() AppointmentsState {
	c := a.state.load()
	list := make([]events.Appointment, 0, len(c.value))
	for _, appt := range c.value {
		list = append(list, appt)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].ScheduledAt.Equal(list[j].ScheduledAt) {
			return list[i].ScheduledAt.Before(list[j].ScheduledAt)
		}
		return list[i].ID < list[j].ID
	})
	return AppointmentsState{Meta: c.meta(), Appointments: list}
}

// Version returns the number of committed changes.
func (a *Appointments) Version() uint64 {
	return a.state.load().version
}

// Reset clears the board.
func (a *Appointments) Reset() {
	a.state.commit(nil, time.Time{})
}
