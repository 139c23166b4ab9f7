// Package console composes render-ready state for the operator UI. One
// fetch state machine runs per data surface; fetches coalesce, carry
// sequence numbers so stale responses never overwrite newer ones, and are
// cancelled deterministically on close.
package console

import (
	"context"
	"sync"
	"time"
)

// Phase is the fetch lifecycle state of a surface.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseLoaded  Phase = "loaded"
	PhaseError   Phase = "error"
)

// Snapshot is a copied view of a surface's state. An Error phase retains
// the last successfully loaded items.
type Snapshot[T any] struct {
	Phase     Phase
	Items     []T
	Err       error
	UpdatedAt time.Time
}

// surface is the fetch state machine for one data surface. At most one
// fetch is in flight at a time; every dispatch carries a sequence number
// and completions apply only if newer than the last applied one.
type surface[T any] struct {
	name string

	mu        sync.Mutex
	phase     Phase
	items     []T
	err       error
	updatedAt time.Time

	seq      uint64 // last dispatched fetch
	applied  uint64 // last applied completion
	inflight bool
	cancel   context.CancelFunc
	closed   bool
}

func newSurface[T any](name string) *surface[T] {
	return &surface[T]{name: name, phase: PhaseIdle}
}

// begin starts a new fetch. When one is already outstanding the caller
// joins it unless supersede is set, in which case the outstanding fetch
// is cancelled and a fresh one dispatched. Returns started=false when the
// caller should not fetch; joined distinguishes a coalesced join from a
// closed surface.
func (s *surface[T]) begin(parent context.Context, supersede bool) (ctx context.Context, seq uint64, started, joined bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, 0, false, false
	}
	if s.inflight {
		if !supersede {
			return nil, 0, false, true
		}
		s.cancel()
	}

	s.seq++
	s.phase = PhaseLoading
	s.inflight = true
	ctx, s.cancel = context.WithCancel(parent)
	return ctx, s.seq, true, false
}

// finish applies a completed fetch. Completions at or below the newest
// applied sequence are discarded; a failure keeps the last good items and
// scopes the error to this surface.
func (s *surface[T]) finish(seq uint64, now time.Time, items []T, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || seq <= s.applied {
		return false
	}
	s.applied = seq
	if seq == s.seq {
		s.inflight = false
		s.cancel = nil
	}
	s.updatedAt = now

	if err != nil {
		s.phase = PhaseError
		s.err = err
		return true
	}
	s.phase = PhaseLoaded
	s.items = items
	s.err = nil
	return true
}

// snapshot returns a copy of the surface state.
func (s *surface[T]) snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]T, len(s.items))
	copy(items, s.items)
	return Snapshot[T]{
		Phase:     s.phase,
		Items:     items,
		Err:       s.err,
		UpdatedAt: s.updatedAt,
	}
}

// close cancels any in-flight fetch and makes every later begin and
// finish a no-op.
func (s *surface[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.inflight = false
}
