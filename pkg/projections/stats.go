package projections

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/logging"
)

// StatsState is the last statistics snapshot. Stats is nil until the server
// sends one.
type StatsState struct {
	Meta `yaml:",inline"`
	Stats *events.DashboardStats `json:"stats" yaml:"stats"`
}

// Stats keeps the latest server-computed dashboard statistics.
type Stats struct {
	logger *zerolog.Logger
	state  cell[*events.DashboardStats]
}

// NewStats creates an empty statistics projection.
func NewStats(logger *zerolog.Logger) *Stats {
	if logger == nil {
		logger = logging.Default()
	}
	return &Stats{logger: logging.Component(logger, "stats")}
}

// Name implements router.Projection.
func (s *Stats) Name() string { return "stats" }

// Kinds implements router.Projection.
func (s *Stats) Kinds() []events.Kind {
	return []events.Kind{events.StatsUpdated}
}

// Apply implements router.Projection.
func (s *Stats) Apply(env events.Envelope) {
	stats, ok := events.PayloadAs[events.DashboardStats](env)
	if !ok {
		s.logger.Error().Str("kind", string(env.Kind)).Msgf("Unexpected payload %T", env.Payload)
		return
	}
	if stats.GeneratedAt.IsZero() {
		stats.GeneratedAt = env.OccurredAt
	}
	s.state.commit(&stats, env.OccurredAt)
}

// Snapshot returns the latest statistics.
func (s *Stats) Snapshot() StatsState {
	c := s.state.load()
	out := StatsState{Meta: c.meta()}
	if c.value != nil {
		v := *c.value
		out.Stats = &v
	}
	return out
}

// Version returns the number of committed changes.
func (s *Stats) Version() uint64 {
	return s.state.load().version
}

// Reset forgets the statistics.
func (s *Stats) Reset() {
	s.state.commit(nil, time.Time{})
}
