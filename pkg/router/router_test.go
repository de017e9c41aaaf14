package router_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/logging"
	"github.com/agentstation/clinicsync/pkg/router"
)

type fakeProjection struct {
	name    string
	kinds   []events.Kind
	applied []events.Envelope
}

func (f *fakeProjection) Name() string             { return f.name }
func (f *fakeProjection) Kinds() []events.Kind     { return f.kinds }
func (f *fakeProjection) Apply(env events.Envelope) { f.applied = append(f.applied, env) }

func newRouter(opts ...router.Option) *router.Router {
	return router.New(append([]router.Option{router.WithLogger(logging.NewNopLogger())}, opts...)...)
}

func TestRouteToOwner(t *testing.T) {
	r := newRouter()
	queue := &fakeProjection{name: "queue", kinds: []events.Kind{events.QueueUpdated, events.QueuePatientAdded}}
	alerts := &fakeProjection{name: "alerts", kinds: []events.Kind{events.AlertCreated}}
	require.NoError(t, r.Register(queue))
	require.NoError(t, r.Register(alerts))

	assert.True(t, r.Route(events.Envelope{Kind: events.QueuePatientAdded}))
	assert.True(t, r.Route(events.Envelope{Kind: events.QueueUpdated}))
	assert.True(t, r.Route(events.Envelope{Kind: events.AlertCreated}))

	require.Len(t, queue.applied, 2)
	// arrival order is preserved
	assert.Equal(t, events.QueuePatientAdded, queue.applied[0].Kind)
	assert.Equal(t, events.QueueUpdated, queue.applied[1].Kind)
	assert.Len(t, alerts.applied, 1)

	owner, ok := r.Owner(events.AlertCreated)
	require.True(t, ok)
	assert.Equal(t, "alerts", owner.Name())
	assert.Equal(t, []events.Kind{events.AlertCreated, events.QueuePatientAdded, events.QueueUpdated}, r.Kinds())
}

func TestRegisterDuplicateKind(t *testing.T) {
	r := newRouter()
	require.NoError(t, r.Register(&fakeProjection{name: "a", kinds: []events.Kind{events.BedStatusChanged}}))

	dup := &fakeProjection{name: "b", kinds: []events.Kind{events.AlertCreated, events.BedStatusChanged}}
	err := r.Register(dup)
	assert.True(t, errors.IsAlreadyExists(err))

	// nothing from the rejected projection is registered
	_, ok := r.Owner(events.AlertCreated)
	assert.False(t, ok)
	assert.Len(t, r.Projections(), 1)

	r.Route(events.Envelope{Kind: events.BedStatusChanged})
	assert.Empty(t, dup.applied)
}

func TestRouteUnroutable(t *testing.T) {
	var dropped []events.Kind
	r := newRouter(router.WithUnroutableHook(func(k events.Kind) { dropped = append(dropped, k) }))

	assert.False(t, r.Route(events.Envelope{Kind: events.StatsUpdated}))
	assert.Equal(t, []events.Kind{events.StatsUpdated}, dropped)
}
