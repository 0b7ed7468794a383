package core

import "context"

// Semaphore is a counting semaphore initialised to one, used as the
// bus-exclusion primitive. Signal never blocks, so a completion handler
// may release the bus from interrupt context.
type Semaphore struct {
	token chan struct{}
}

// NewSemaphore returns a free semaphore.
func NewSemaphore() *Semaphore {
	return &Semaphore{token: make(chan struct{}, 1)}
}

// Wait blocks until the semaphore is taken or ctx is done.
func (s *Semaphore) Wait(ctx context.Context) error {
	select {
	case s.token <- struct{}{}:
		return nil
	default:
	}
	select {
	case s.token <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signal releases the semaphore. Releasing a free semaphore is a no-op.
func (s *Semaphore) Signal() {
	select {
	case <-s.token:
	default:
	}
}

// Held reports whether the semaphore is taken.
func (s *Semaphore) Held() bool { return len(s.token) == 1 }

// Waiter is a single waiting-thread slot: one goroutine suspends on it and
// a completion handler resumes it.
type Waiter struct {
	wake chan struct{}
}

func newWaiter() *Waiter {
	return &Waiter{wake: make(chan struct{}, 1)}
}

// prepare discards a wake-up left behind by a waiter that gave up.
// It must run before the event that will call Resume is started.
func (w *Waiter) prepare() {
	select {
	case <-w.wake:
	default:
	}
}

// Suspend blocks until Resume is called or ctx is done.
func (w *Waiter) Suspend(ctx context.Context) error {
	select {
	case <-w.wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume wakes the suspended goroutine. It never blocks and is safe to call
// from interrupt context; with nobody waiting the wake-up is kept until the
// next prepare.
func (w *Waiter) Resume() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}
