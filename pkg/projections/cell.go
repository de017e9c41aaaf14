// Package projections holds the in-memory state views fed by the router.
//
// Every projection has one writer (the client loop) and any number of
// readers. Reducers build a new state value and the result is published
// with a single atomic pointer swap, so readers never block and never see
// a half-applied event.
package projections

import (
	"sync/atomic"
	"time"
)

// committed is one published state together with its version.
type committed[T any] struct {
	value     T
	version   uint64
	updatedAt time.Time
}

// cell is a single-writer, many-reader published value.
type cell[T any] struct {
	p atomic.Pointer[committed[T]]
}

func (c *cell[T]) load() *committed[T] {
	if cur := c.p.Load(); cur != nil {
		return cur
	}
	return &committed[T]{}
}

// commit publishes v as the next version. Only the writer calls commit.
func (c *cell[T]) commit(v T, at time.Time) {
	c.p.Store(&committed[T]{value: v, version: c.load().version + 1, updatedAt: at})
}

// Meta describes the published version of a projection.
type Meta struct {
	Version   uint64    `json:"version" yaml:"version"`
	UpdatedAt time.Time `json:"updatedAt,omitzero" yaml:"updatedAt,omitempty"`
}

func (c *committed[T]) meta() Meta {
	return Meta{Version: c.version, UpdatedAt: c.updatedAt}
}
