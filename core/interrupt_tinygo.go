//go:build tinygo

package core

import (
	"runtime"
	"runtime/interrupt"
)

type irqState = interrupt.State

// disableInterrupts masks interrupts and returns the previous state.
func disableInterrupts() irqState {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state.
func restoreInterrupts(state irqState) {
	interrupt.Restore(state)
}

// yield gives the scheduler a chance to run while spinning in thread
// context. Handlers cannot be preempted by threads, so a spinning thread
// never waits on a handler that is not already finished or runnable.
func yield() {
	runtime.Gosched()
}
