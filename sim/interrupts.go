// Package sim simulates the silicon underneath the HAL core so the drivers
// can run, and be tested, on a host.
//
// Interrupt handlers run on a single delivery goroutine: like the real
// interrupt context it never nests and preempts no other handler.
package sim

import (
	"context"

	"gopal/hw"
)

// Interrupts delivers flagged and enabled lines of an interrupt controller
// to a service routine, one at a time.
type Interrupts struct {
	Regs *hw.IntController

	kick chan struct{}
	done chan struct{}
}

// NewInterrupts returns a delivery context for regs. Call Start before
// raising lines.
func NewInterrupts(regs *hw.IntController) *Interrupts {
	if regs == nil {
		regs = &hw.IntController{}
	}
	return &Interrupts{
		Regs: regs,
		kick: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start runs service on the delivery goroutine until ctx is cancelled.
// service is expected to acknowledge what it handles; it is called again for
// as long as any line stays pending.
func (ic *Interrupts) Start(ctx context.Context, service func()) {
	go func() {
		defer close(ic.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ic.kick:
			}
			for ic.pending() {
				if ctx.Err() != nil {
					return
				}
				service()
			}
		}
	}()
}

// Done is closed once the delivery goroutine has exited.
func (ic *Interrupts) Done() <-chan struct{} { return ic.done }

// Raise flags irq and, if the line is enabled, wakes the delivery goroutine.
// It never blocks, so peripherals may call it from inside a handler.
func (ic *Interrupts) Raise(irq int) {
	ic.Regs.Raise(irq)
	if ic.Regs.LineEnabled(irq) {
		ic.Kick()
	}
}

// Kick wakes the delivery goroutine to rescan the controller, as enabling a
// line with its flag already set does on hardware.
func (ic *Interrupts) Kick() {
	select {
	case ic.kick <- struct{}{}:
	default:
	}
}

func (ic *Interrupts) pending() bool {
	for b := 0; b < hw.IntBanks; b++ {
		if ic.Regs.Pending(b) != 0 {
			return true
		}
	}
	return false
}

// The methods below let Interrupts stand in for the controller itself, so
// enabling a line that is already flagged delivers it.

func (ic *Interrupts) EnableLine(irq int) {
	ic.Regs.EnableLine(irq)
	if ic.Regs.Flagged(irq) {
		ic.Kick()
	}
}

func (ic *Interrupts) DisableLine(irq int)      { ic.Regs.DisableLine(irq) }
func (ic *Interrupts) LineEnabled(irq int) bool { return ic.Regs.LineEnabled(irq) }
func (ic *Interrupts) AckLine(irq int)          { ic.Regs.AckLine(irq) }
func (ic *Interrupts) Pending(bank int) uint32  { return ic.Regs.Pending(bank) }
