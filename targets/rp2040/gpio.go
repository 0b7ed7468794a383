//go:build rp2040

package main

import (
	"machine"
)

// numPins is the number of user GPIOs in bank 0.
const numPins = 30

// pinPort presents GPIO bank 0 as a core.IOPort. The SIO block has no
// analog or open-drain registers, so the port keeps shadow copies of every
// mask and reconfigures each touched pad from them.
type pinPort struct {
	analog uint32
	od     uint32
	input  uint32
	latch  uint32
}

func newPinPort() *pinPort {
	// Pads come out of reset as inputs.
	return &pinPort{input: 1<<numPins - 1}
}

func (p *pinPort) AnalogSet(mask uint32)      { p.analog |= mask; p.apply(mask) }
func (p *pinPort) AnalogClear(mask uint32)    { p.analog &^= mask; p.apply(mask) }
func (p *pinPort) OpenDrainSet(mask uint32)   { p.od |= mask; p.apply(mask) }
func (p *pinPort) OpenDrainClear(mask uint32) { p.od &^= mask; p.apply(mask) }
func (p *pinPort) DirInput(mask uint32)       { p.input |= mask; p.apply(mask) }
func (p *pinPort) DirOutput(mask uint32)      { p.input &^= mask; p.apply(mask) }
func (p *pinPort) LatchSet(mask uint32)       { p.latch |= mask; p.drive(mask) }
func (p *pinPort) LatchClear(mask uint32)     { p.latch &^= mask; p.drive(mask) }
func (p *pinPort) LatchToggle(mask uint32)    { p.latch ^= mask; p.drive(mask) }
func (p *pinPort) ReadLatch() uint32          { return p.latch }

func (p *pinPort) ReadPort() uint32 {
	var v uint32
	for i := 0; i < numPins; i++ {
		if machine.Pin(i).Get() {
			v |= 1 << uint(i)
		}
	}
	return v
}

func (p *pinPort) apply(mask uint32) {
	for i := 0; i < numPins; i++ {
		bit := uint32(1) << uint(i)
		if mask&bit == 0 {
			continue
		}
		pin := machine.Pin(i)
		switch {
		case p.input&bit != 0 && p.analog&bit != 0:
			pin.Configure(machine.PinConfig{Mode: machine.PinAnalog})
		case p.input&bit != 0:
			pin.Configure(machine.PinConfig{Mode: machine.PinInput})
		default:
			p.drive(bit)
		}
	}
}

// drive updates output pads. An open-drain pad floats high on its pull-up
// and is only driven when its latch is low.
func (p *pinPort) drive(mask uint32) {
	mask &^= p.input
	for i := 0; i < numPins; i++ {
		bit := uint32(1) << uint(i)
		if mask&bit == 0 {
			continue
		}
		pin := machine.Pin(i)
		high := p.latch&bit != 0
		if p.od&bit != 0 && high {
			pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
			continue
		}
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.Set(high)
	}
}
