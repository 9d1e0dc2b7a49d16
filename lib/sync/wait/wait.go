package wait

import (
	"sync"
	"time"
)

// Wait is a sync.WaitGroup that can also be waited on with a deadline
type Wait struct {
	wg sync.WaitGroup
}

// Add adds delta, which may be negative, to the counter
func (w *Wait) Add(delta int) {
	w.wg.Add(delta)
}

// Done decrements the counter by one
func (w *Wait) Done() {
	w.wg.Done()
}

// Wait blocks until the counter is zero
func (w *Wait) Wait() {
	w.wg.Wait()
}

// WaitWithTimeout blocks until the counter is zero or timeout elapses.
// It returns true on timeout.
func (w *Wait) WaitWithTimeout(timeout time.Duration) bool {
	c := make(chan struct{})
	go func() {
		defer close(c)
		w.wg.Wait()
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c:
		return false
	case <-timer.C:
		return true
	}
}
