package core

import (
	"math/bits"
	"sync/atomic"
)

// IRQ line capacity of the interrupt controller.
const (
	NumIRQs  = 75
	IRQBanks = 3
)

// Well-known lines.
const (
	IRQCoreTimer IRQ = 0
	IRQUART1RX   IRQ = 27
)

// IRQ is an interrupt line number in [0, NumIRQs).
type IRQ int

// Valid reports whether irq names a line of the controller.
func (irq IRQ) Valid() bool { return irq >= 0 && irq < NumIRQs }

// IRQHandler runs in interrupt context with the data it was registered
// with. It must not block.
type IRQHandler func(data any)

// IntController is the line-masking half of the interrupt controller.
// Lines are numbered across banks of 32.
type IntController interface {
	EnableLine(irq int)
	DisableLine(irq int)
	LineEnabled(irq int) bool
	AckLine(irq int)
	Pending(bank int) uint32
}

type irqVector struct {
	handler IRQHandler
	data    any
}

type irqSlot struct {
	vec        atomic.Pointer[irqVector]
	running    atomic.Int32
	dispatches atomic.Uint32
	spurious   atomic.Uint32
}

// EIC is the IRQ handler registry. Slots are replaced whole through an
// atomic pointer, so the dispatch path sees either the old handler with its
// data or the new one, never a mix.
type EIC struct {
	ctl   IntController
	slots [NumIRQs]irqSlot
}

// NewEIC takes ownership of ctl, masking and acknowledging every line. It
// must run before any driver registers a handler.
func NewEIC(ctl IntController) *EIC {
	e := &EIC{ctl: ctl}
	for irq := 0; irq < NumIRQs; irq++ {
		ctl.DisableLine(irq)
		ctl.AckLine(irq)
	}
	return e
}

func checkIRQ(op string, irq IRQ) {
	if !irq.Valid() {
		fatal(op+" "+itoa(int(irq)), ErrIRQRange)
	}
}

// Register installs handler for irq, leaving the line's enablement as it
// was. A bad line number, a nil handler or an occupied slot is fatal and
// leaves the slot unchanged.
func (e *EIC) Register(irq IRQ, handler IRQHandler, data any) {
	checkIRQ("eic register", irq)
	if handler == nil {
		fatal("eic register "+itoa(int(irq)), ErrNilHandler)
	}
	vec := &irqVector{handler: handler, data: data}

	state := disableInterrupts()
	ok := e.slots[irq].vec.CompareAndSwap(nil, vec)
	restoreInterrupts(state)

	if !ok {
		fatal("eic register "+itoa(int(irq)), ErrIRQInstalled)
	}
	RecordEvent(EvtIRQInstall, uint8(irq), 0, 0)
}

// Unregister masks irq and removes its handler. When it returns no
// invocation of the removed handler is running or can start. It must not
// be called from the handler being removed.
func (e *EIC) Unregister(irq IRQ) {
	checkIRQ("eic unregister", irq)
	slot := &e.slots[irq]

	state := disableInterrupts()
	e.ctl.DisableLine(int(irq))
	old := slot.vec.Swap(nil)
	restoreInterrupts(state)

	if old == nil {
		return
	}
	for slot.running.Load() != 0 {
		yield()
	}
	RecordEvent(EvtIRQRemove, uint8(irq), 0, 0)
}

// Enable unmasks irq at the controller.
func (e *EIC) Enable(irq IRQ) {
	checkIRQ("eic enable", irq)
	e.ctl.EnableLine(int(irq))
}

// Disable masks irq at the controller. The handler stays installed.
func (e *EIC) Disable(irq IRQ) {
	checkIRQ("eic disable", irq)
	e.ctl.DisableLine(int(irq))
}

// ClearPending drops a flag raised while the line was masked.
func (e *EIC) ClearPending(irq IRQ) {
	checkIRQ("eic clear pending", irq)
	e.ctl.AckLine(int(irq))
}

// Installed reports whether irq has a handler.
func (e *EIC) Installed(irq IRQ) bool {
	return irq.Valid() && e.slots[irq].vec.Load() != nil
}

// Enabled reports whether irq is unmasked at the controller.
func (e *EIC) Enabled(irq IRQ) bool {
	return irq.Valid() && e.ctl.LineEnabled(int(irq))
}

// Stats returns how many times irq was dispatched, and how many of those
// found no handler.
func (e *EIC) Stats(irq IRQ) (dispatches, spurious uint32) {
	if !irq.Valid() {
		return 0, 0
	}
	s := &e.slots[irq]
	return s.dispatches.Load(), s.spurious.Load()
}

// Dispatch is the interrupt-context entry for one line. It acknowledges the
// line and calls the installed handler, if any.
func (e *EIC) Dispatch(irq IRQ) {
	if !irq.Valid() {
		return
	}
	slot := &e.slots[irq]
	e.ctl.AckLine(int(irq))
	slot.dispatches.Add(1)

	slot.running.Add(1)
	vec := slot.vec.Load()
	if vec == nil {
		slot.running.Add(-1)
		slot.spurious.Add(1)
		RecordEvent(EvtIRQSpurious, uint8(irq), 0, 0)
		return
	}
	vec.handler(vec.data)
	slot.running.Add(-1)
}

// Service is the single interrupt vector: it dispatches every flagged and
// enabled line, lowest bank and lowest line first.
func (e *EIC) Service() {
	for bank := 0; bank < IRQBanks; bank++ {
		pending := e.ctl.Pending(bank)
		for pending != 0 {
			bit := bits.TrailingZeros32(pending)
			pending &^= 1 << uint(bit)
			irq := bank*32 + bit
			if irq >= NumIRQs {
				e.ctl.AckLine(irq)
				continue
			}
			e.Dispatch(IRQ(irq))
		}
	}
}
