// Package tracker provides a completion barrier for a task graph that grows while it drains.
package tracker

import (
	"context"
	"sync"
)

// Tracker counts outstanding units of work. It starts with one unit registered
// on behalf of the caller that created it; that unit must be completed like any other.
//
// Register must be called before the new unit is handed to anything that could complete it,
// otherwise the count can reach zero while work is still in flight.
type Tracker struct {
	mu      sync.Mutex
	pending int64
	done    chan struct{}
}

// New returns a Tracker with the root unit already registered.
func New() *Tracker {
	return &Tracker{
		pending: 1,
		done:    make(chan struct{}),
	}
}

// Register adds one outstanding unit of work.
// Registering after the count has reached zero panics: the barrier has already opened.
func (t *Tracker) Register() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == 0 {
		panic("tracker: Register called after all work completed")
	}
	t.pending++
}

// Complete marks one unit of work as finished and releases waiters when none remain.
func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending <= 0 {
		panic("tracker: Complete called more times than Register")
	}
	t.pending--
	if t.pending == 0 {
		close(t.done)
	}
}

// Wait blocks until every registered unit, including the root, has completed.
func (t *Tracker) Wait() {
	<-t.done
}

// WaitContext is Wait bounded by ctx. It returns ctx.Err() if ctx ends first.
func (t *Tracker) WaitContext(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the count reaches zero.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// Pending returns the number of outstanding units.
func (t *Tracker) Pending() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}
