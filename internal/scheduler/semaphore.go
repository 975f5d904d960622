package scheduler

import "context"

// Semaphore bounds the number of jobs running concurrently across a
// whole run, independent of each job's own per-matrix max-parallel cap.
// Adapted directly from internal/cwlrunner/semaphore.go, which bounds
// CWL steps and scatter iterations the same way; here it bounds job
// goroutines instead.
type Semaphore struct {
	ch chan struct{}
}

// NewSemaphore creates a semaphore with the given capacity. n <= 0
// means unlimited concurrency (nil semaphore).
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		return nil
	}
	return &Semaphore{ch: make(chan struct{}, n)}
}

// Acquire blocks until a slot is available or ctx is cancelled.
func (s *Semaphore) Acquire(ctx context.Context) bool {
	if s == nil {
		return true
	}
	select {
	case s.ch <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

// Release frees a previously-acquired slot. A no-op on a nil semaphore.
func (s *Semaphore) Release() {
	if s == nil {
		return
	}
	<-s.ch
}
