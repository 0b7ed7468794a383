package sim

import (
	"context"

	"gopal/hw"
)

// PeripheralClock is the bus clock feeding the simulated SPI baud generators.
const PeripheralClock = 40000000

// Receive interrupt lines of the simulated SPI units.
const (
	SPI1RxIRQ = 24
	SPI2RxIRQ = 38
)

// Board bundles the simulated peripherals of one chip.
type Board struct {
	Ports map[string]*hw.Port
	Intc  *hw.IntController
	Ints  *Interrupts
	SPI1  *SPI
	SPI2  *SPI
}

// NewBoard returns a chip with ports A to D and two SPI units, all in their
// reset state.
func NewBoard() *Board {
	intc := &hw.IntController{}
	ints := NewInterrupts(intc)
	b := &Board{
		Ports: make(map[string]*hw.Port),
		Intc:  intc,
		Ints:  ints,
		SPI1:  NewSPI("spi1", PeripheralClock, ints, SPI1RxIRQ),
		SPI2:  NewSPI("spi2", PeripheralClock, ints, SPI2RxIRQ),
	}
	for _, name := range []string{"A", "B", "C", "D"} {
		b.Ports[name] = hw.NewPort(name)
	}
	return b
}

// Port returns the port with the given letter.
func (b *Board) Port(name string) (*hw.Port, bool) {
	p, ok := b.Ports[name]
	return p, ok
}

// SPI returns the unit with the given name.
func (b *Board) SPI(name string) (*SPI, bool) {
	switch name {
	case b.SPI1.Name:
		return b.SPI1, true
	case b.SPI2.Name:
		return b.SPI2, true
	}
	return nil, false
}

// Start begins interrupt delivery to service, normally core.EIC.Service.
func (b *Board) Start(ctx context.Context, service func()) {
	b.Ints.Start(ctx, service)
}
