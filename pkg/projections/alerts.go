package projections

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/logging"
)

// AlertsState is a read-only snapshot of the alert feed, newest first.
type AlertsState struct {
	Meta `yaml:",inline"`
	Alerts []events.Alert `json:"alerts" yaml:"alerts"`
}

// Alerts projects alert events onto a feed with unique ids.
type Alerts struct {
	logger *zerolog.Logger
	state  cell[[]events.Alert]
}

// NewAlerts creates an empty alert feed.
func NewAlerts(logger *zerolog.Logger) *Alerts {
	if logger == nil {
		logger = logging.Default()
	}
	return &Alerts{logger: logging.Component(logger, "alerts")}
}

// Name implements router.Projection.
func (a *Alerts) Name() string { return "alerts" }

// Kinds implements router.Projection.
func (a *Alerts) Kinds() []events.Kind {
	return []events.Kind{events.AlertCreated, events.AlertDismissed}
}

// Apply implements router.Projection.
func (a *Alerts) Apply(env events.Envelope) {
	cur := a.state.load().value

	switch p := env.Payload.(type) {
	case events.Alert:
		if indexAlert(cur, p.ID) >= 0 {
			a.logger.Debug().Str("alert_id", p.ID).Msg("Duplicate alert ignored")
			return
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = env.OccurredAt
		}
		next := make([]events.Alert, 0, len(cur)+1)
		next = append(next, p)
		next = append(next, cur...)
		a.state.commit(next, env.OccurredAt)

	case events.AlertRef:
		idx := indexAlert(cur, p.ID)
		if idx < 0 {
			a.logger.Debug().Str("alert_id", p.ID).Msg("Dismissed alert not in feed")
			return
		}
		next := make([]events.Alert, 0, len(cur)-1)
		next = append(next, cur[:idx]...)
		next = append(next, cur[idx+1:]...)
		a.state.commit(next, env.OccurredAt)

	default:
		a.logger.Error().Str("kind", string(env.Kind)).Msgf("Unexpected payload %T", env.Payload)
	}
}

func indexAlert(alerts []events.Alert, id string) int {
	for i := range alerts {
		if alerts[i].ID == id {
			return i
		}
	}
	return -1
}

// Snapshot returns the feed. The slice is a copy.
func (a *Alerts) Snapshot() AlertsState {
	c := a.state.load()
	return AlertsState{Meta: c.meta(), Alerts: append([]events.Alert{}, c.value...)}
}

// Version returns the number of committed changes.
func (a *Alerts) Version() uint64 {
	return a.state.load().version
}

// Reset empties the feed.
func (a *Alerts) Reset() {
	a.state.commit(nil, time.Time{})
}
