package hw

// IntBanks is the number of 32-line IFS/IEC register banks.
const IntBanks = 3

// IntController is the banked flag/enable register pair of the interrupt
// controller. It satisfies core.IntController.
type IntController struct {
	IFS [IntBanks]Reg32 // interrupt flag status
	IEC [IntBanks]Reg32 // interrupt enable control
}

func bankBit(irq int) (int, uint32) {
	return irq >> 5, 1 << uint(irq&31)
}

func (c *IntController) EnableLine(irq int) {
	b, m := bankBit(irq)
	c.IEC[b].SetBits(m)
}

func (c *IntController) DisableLine(irq int) {
	b, m := bankBit(irq)
	c.IEC[b].ClearBits(m)
}

func (c *IntController) LineEnabled(irq int) bool {
	b, m := bankBit(irq)
	return c.IEC[b].HasBits(m)
}

// AckLine clears the flag of irq.
func (c *IntController) AckLine(irq int) {
	b, m := bankBit(irq)
	c.IFS[b].ClearBits(m)
}

// Raise sets the flag of irq, the way a peripheral signals the controller.
func (c *IntController) Raise(irq int) {
	b, m := bankBit(irq)
	c.IFS[b].SetBits(m)
}

// Flagged reports whether irq has its flag set, enabled or not.
func (c *IntController) Flagged(irq int) bool {
	b, m := bankBit(irq)
	return c.IFS[b].HasBits(m)
}

// Pending returns the lines of bank that are both flagged and enabled.
func (c *IntController) Pending(bank int) uint32 {
	return c.IFS[bank].Get() & c.IEC[bank].Get()
}
