// Package cleanup tracks every externally-visible resource a run
// creates — containers, networks, volumes, temp directories — so they
// are torn down exactly once, even on a panic, a cancelled run, or a
// received signal.
package cleanup

import (
	"context"
	"sync"
	"time"
)

// HandleKind labels what a Handle owns, for logging and testing.
type HandleKind string

const (
	KindContainer HandleKind = "container"
	KindNetwork   HandleKind = "network"
	KindVolume    HandleKind = "volume"
	KindTempDir   HandleKind = "tempdir"
)

// Handle is one resource registered for cleanup.
type Handle struct {
	Kind  HandleKind
	ID    string
	Close func(context.Context) error
}

// Registry is a process-wide set of Handles, guarded by a mutex held
// only during Add/Remove — Drain copies the slice before running Close
// calls, so a handle added mid-drain by another goroutine is picked up
// on its own pass rather than racing the copy (spec.md §5's
// "traversal copies handles").
type Registry struct {
	mu      sync.Mutex
	order   []string
	handles map[string]Handle
	removed map[string]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]Handle),
		removed: make(map[string]struct{}),
	}
}

// Add registers h. Re-adding an ID that was previously removed is
// allowed and un-removes it.
func (r *Registry) Add(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[h.ID]; !exists {
		r.order = append(r.order, h.ID)
	}
	r.handles[h.ID] = h
	delete(r.removed, h.ID)
}

// Remove marks id as already torn down out-of-band, so Drain skips it.
// Idempotent: removing an already-removed or unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed[id] = struct{}{}
}

// Drain closes every registered, not-yet-removed handle in reverse
// insertion order, best effort: a Close error is collected but never
// stops the drain. The whole drain is bounded by a 10s deadline
// derived from ctx.
func (r *Registry) Drain(ctx context.Context) []error {
	r.mu.Lock()
	order := append([]string(nil), r.order...)
	handles := make(map[string]Handle, len(r.handles))
	for k, v := range r.handles {
		handles[k] = v
	}
	removed := make(map[string]struct{}, len(r.removed))
	for k := range r.removed {
		removed[k] = struct{}{}
	}
	r.mu.Unlock()

	drainCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if _, skip := removed[id]; skip {
			continue
		}
		h, ok := handles[id]
		if !ok {
			continue
		}
		if err := h.Close(drainCtx); err != nil {
			errs = append(errs, err)
		}
		r.Remove(id)
	}
	return errs
}

// Len reports the number of handles still registered (not yet
// removed), for tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range r.order {
		if _, removed := r.removed[id]; !removed {
			n++
		}
	}
	return n
}
