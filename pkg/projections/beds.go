package projections

import (
	"maps"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/logging"
)

// Bed is the last reported state of one bed.
type Bed struct {
	events.BedStatusChange `yaml:",inline"`
	UpdatedAt              time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// BedsState is a read-only snapshot of the bed map, ordered by ward then bed.
type BedsState struct {
	Meta `yaml:",inline"`
	Beds   []Bed                    `json:"beds" yaml:"beds"`
	Counts map[events.BedStatus]int `json:"counts" yaml:"counts"`
}

// Beds projects bed status changes onto a map keyed by bed id. The last
// writer wins.
type Beds struct {
	logger *zerolog.Logger
	state  cell[map[string]Bed]
}

// NewBeds creates an empty bed projection.
func NewBeds(logger *zerolog.Logger) *Beds {
	if logger == nil {
		logger = logging.Default()
	}
	return &Beds{logger: logging.Component(logger, "beds")}
}

// Name implements router.Projection.
func (b *Beds) Name() string { return "beds" }

// Kinds implements router.Projection.
func (b *Beds) Kinds() []events.Kind {
	return []events.Kind{events.BedStatusChanged}
}

// Apply implements router.Projection.
func (b *Beds) Apply(env events.Envelope) {
	change, ok := events.PayloadAs[events.BedStatusChange](env)
	if !ok {
		b.logger.Error().Str("kind", string(env.Kind)).Msgf("Unexpected payload %T", env.Payload)
		return
	}
	b.state.commit(upsertBed(b.state.load().value, change, env.OccurredAt), env.OccurredAt)
}

func upsertBed(cur map[string]Bed, change events.BedStatusChange, at time.Time) map[string]Bed {
	next := make(map[string]Bed, len(cur)+1)
	maps.Copy(next, cur)
	next[change.BedID] = Bed{BedStatusChange: change, UpdatedAt: at}
	return next
}

// Get returns one bed.
func (b *Beds) Get(bedID string) (Bed, bool) {
	bed, ok := b.state.load().value[bedID]
	return bed, ok
}

// Snapshot returns every bed.
func (b *Beds) Snapshot() BedsState {
	c := b.state.load()
	out := BedsState{
		Meta:   c.meta(),
		Beds:   make([]Bed, 0, len(c.value)),
		Counts: make(map[events.BedStatus]int),
	}
	for _, bed := range c.value {
		out.Beds = append(out.Beds, bed)
		out.Counts[bed.Status]++
	}
	sort.Slice(out.Beds, func(i, j int) bool {
		if out.Beds[i].WardID != out.Beds[j].WardID {
			return out.Beds[i].WardID < out.Beds[j].WardID
		}
		return out.Beds[i].BedID < out.Beds[j].BedID
	})
	return out
}

// Version returns the number of committed changes.
func (b *Beds) Version() uint64 {
	return b.state.load().version
}

// Reset empties the bed map.
func (b *Beds) Reset() {
	b.state.commit(nil, time.Time{})
}
