// Package router dispatches decoded envelopes to the projection that owns
// their kind.
package router

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/events"
	"github.com/agentstation/clinicsync/pkg/logging"
)

// Projection is a state view that consumes envelopes of the kinds it owns.
type Projection interface {
	Name() string
	Kinds() []events.Kind
	Apply(env events.Envelope)
}

// Router maps each kind to exactly one projection.
type Router struct {
	logger *zerolog.Logger

	mu          sync.RWMutex
	owners      map[events.Kind]Projection
	projections []Projection
	unroutable  func(kind events.Kind)
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithUnroutableHook is called for every envelope no projection owns.
func WithUnroutableHook(fn func(kind events.Kind)) Option {
	return func(r *Router) {
		r.unroutable = fn
	}
}

// New creates an empty router.
func New(opts ...Option) *Router {
	r := &Router{
		logger: logging.Default(),
		owners: make(map[events.Kind]Projection),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a projection. Registration is all or nothing: if any of its
// kinds already has an owner nothing is registered.
func (r *Router) Register(p Projection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := p.Kinds()
	for _, k := range kinds {
		if owner, ok := r.owners[k]; ok {
			return fmt.Errorf("kind %s already owned by %s: %w", k, owner.Name(), errors.ErrAlreadyExists)
		}
	}
	for _, k := range kinds {
		r.owners[k] = p
	}
	r.projections = append(r.projections, p)

	r.logger.Debug().Str("projection", p.Name()).Int("kinds", len(kinds)).Msg("Projection registered")
	return nil
}

// Route applies env to its owner synchronously. It reports false when no
// projection owns the kind.
func (r *Router) Route(env events.Envelope) bool {
	r.mu.RLock()
	p, ok := r.owners[env.Kind]
	hook := r.unroutable
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn().Str("kind", string(env.Kind)).Msg("No projection for kind, dropping event")
		if hook != nil {
			hook(env.Kind)
		}
		return false
	}

	p.Apply(env)
	return true
}

// Owner returns the projection registered for kind.
func (r *Router) Owner(kind events.Kind) (Projection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.owners[kind]
	return p, ok
}

// Kinds returns every routed kind in sorted order.
func (r *Router) Kinds() []events.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]events.Kind, 0, len(r.owners))
	for k := range r.owners {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Projections returns the registered projections in registration order.
func (r *Router) Projections() []Projection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Projection(nil), r.projections...)
}
