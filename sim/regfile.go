package sim

import (
	"sync"

	"gopal/hw"
)

// RegisterFile is an SPI slave exposing 128 byte-wide registers, addressed
// the way most sensor and radio chips are: the first frame of a transaction
// carries the address, with bit 7 set for a write, and every following data
// frame moves to the next address.
//
// Frames wider than 8 bits use their low byte.
type RegisterFile struct {
	mu       sync.Mutex
	regs     [128]byte
	csMask   uint32
	csHigh   bool
	selected bool
	addr     byte
	write    bool
	inData   bool
}

// NewRegisterFile returns a register file that is always selected until
// AttachCS ties it to a chip-select pad.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{selected: true}
}

// AttachCS makes the device follow the chip-select pad of port. Each
// assertion starts a new transaction.
func (r *RegisterFile) AttachCS(port *hw.Port, pad uint8, activeHigh bool) {
	r.mu.Lock()
	r.csMask = 1 << pad
	r.csHigh = activeHigh
	r.selected = r.isSelected(port.ReadLatch())
	r.mu.Unlock()
	port.Watch(r.latchChanged)
}

func (r *RegisterFile) isSelected(lat uint32) bool {
	return (lat&r.csMask != 0) == r.csHigh
}

func (r *RegisterFile) latchChanged(lat uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sel := r.isSelected(lat)
	if sel != r.selected {
		r.selected = sel
		r.inData = false
	}
}

// Shift implements Peer.
func (r *RegisterFile) Shift(out uint32, _ int) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.selected {
		return 0xFF
	}
	b := byte(out)
	if !r.inData {
		r.addr = b & 0x7F
		r.write = b&0x80 != 0
		r.inData = true
		return 0
	}
	var in byte
	if r.write {
		r.regs[r.addr] = b
	} else {
		in = r.regs[r.addr]
	}
	r.addr = (r.addr + 1) & 0x7F
	return uint32(in)
}

// Set stores v at addr.
func (r *RegisterFile) Set(addr, v byte) {
	r.mu.Lock()
	r.regs[addr&0x7F] = v
	r.mu.Unlock()
}

// Get returns the register at addr.
func (r *RegisterFile) Get(addr byte) byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[addr&0x7F]
}
