package hw

import "sync"

// PortWidth is the number of pads on one GPIO port.
const PortWidth = 16

// PortMaskAll selects every pad of a port.
const PortMaskAll = 1<<PortWidth - 1

// Port is one GPIO port register block.
//
//	TRIS  1 = input, 0 = output
//	ANSEL 1 = analog, 0 = digital
//	ODC   1 = open-drain output stage
//	LAT   output latch
//	PORT  pad levels driven from outside the chip
//
// Port satisfies core.IOPort.
type Port struct {
	Name string

	TRIS  Reg32
	ANSEL Reg32
	ODC   Reg32
	LAT   Reg32
	PORT  Reg32

	mu       sync.Mutex
	watchers []func(lat uint32)
}

// NewPort returns a port in its reset state: every pad an analog input.
func NewPort(name string) *Port {
	p := &Port{Name: name}
	p.TRIS.Set(PortMaskAll)
	p.ANSEL.Set(PortMaskAll)
	return p
}

func (p *Port) AnalogSet(mask uint32) { p.ANSEL.SetBits(mask) }
func (p *Port) AnalogClear(mask uint32) { p.ANSEL.ClearBits(mask) }
func (p *Port) OpenDrainSet(mask uint32) { p.ODC.SetBits(mask) }
func (p *Port) OpenDrainClear(mask uint32) { p.ODC.ClearBits(mask) }
func (p *Port) DirInput(mask uint32) { p.TRIS.SetBits(mask) }
func (p *Port) DirOutput(mask uint32) { p.TRIS.ClearBits(mask) }

func (p *Port) LatchSet(mask uint32) {
	p.LAT.SetBits(mask)
	p.notify()
}

func (p *Port) LatchClear(mask uint32) {
	p.LAT.ClearBits(mask)
	p.notify()
}

func (p *Port) LatchToggle(mask uint32) {
	p.LAT.InvertBits(mask)
	p.notify()
}

func (p *Port) ReadLatch() uint32 { return p.LAT.Get() }

// ReadPort returns the pad levels: outputs read back their latch, inputs
// read whatever is driven onto them.
func (p *Port) ReadPort() uint32 {
	tris := p.TRIS.Get()
	return p.LAT.Get()&^tris | p.PORT.Get()&tris
}

// Drive sets the externally driven level of the masked pads.
func (p *Port) Drive(mask, levels uint32) { p.PORT.ReplaceBits(levels, mask) }

// Watch registers fn to be called with the new latch value after every
// latch write. Simulated peripherals use it to follow chip-select edges.
func (p *Port) Watch(fn func(lat uint32)) {
	p.mu.Lock()
	p.watchers = append(p.watchers, fn)
	p.mu.Unlock()
}

func (p *Port) notify() {
	p.mu.Lock()
	ws := p.watchers
	p.mu.Unlock()
	if len(ws) == 0 {
		return
	}
	lat := p.LAT.Get()
	for _, fn := range ws {
		fn(lat)
	}
}
