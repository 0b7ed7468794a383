//go:build !tinygo

package core

import "runtime"

// irqState is a placeholder for the saved interrupt state on regular Go.
type irqState uintptr

// disableInterrupts is a no-op on regular Go. Registry and driver state
// shared with handlers is kept in atomics instead.
func disableInterrupts() irqState {
	return 0
}

// restoreInterrupts is a no-op on regular Go.
func restoreInterrupts(state irqState) {}

// yield lets a handler running on another goroutine make progress.
func yield() {
	runtime.Gosched()
}
