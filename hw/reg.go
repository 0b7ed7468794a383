// Package hw models the peripheral register blocks the HAL core programs:
// GPIO ports, the banked interrupt controller and the SPI unit bit layout.
//
// Registers follow the PIC32 convention of SET/CLR/INV shadow writes, so a
// masked update never disturbs bits outside the mask.
package hw

import "sync/atomic"

// Reg32 is a 32-bit peripheral register. Every access is atomic, which is
// what the SET/CLR/INV shadow addresses give the real silicon.
type Reg32 struct {
	v atomic.Uint32
}

// Get reads the register.
func (r *Reg32) Get() uint32 { return r.v.Load() }

// Set writes the whole register.
func (r *Reg32) Set(value uint32) { r.v.Store(value) }

// SetBits is a write to the SET shadow.
func (r *Reg32) SetBits(mask uint32) { r.v.Or(mask) }

// ClearBits is a write to the CLR shadow.
func (r *Reg32) ClearBits(mask uint32) { r.v.And(^mask) }

// InvertBits is a write to the INV shadow.
func (r *Reg32) InvertBits(mask uint32) {
	for {
		old := r.v.Load()
		if r.v.CompareAndSwap(old, old^mask) {
			return
		}
	}
}

// HasBits reports whether every bit in mask is set.
func (r *Reg32) HasBits(mask uint32) bool { return r.v.Load()&mask == mask }

// ReplaceBits replaces the bits selected by mask with the same bits of value.
func (r *Reg32) ReplaceBits(value, mask uint32) {
	for {
		old := r.v.Load()
		if r.v.CompareAndSwap(old, old&^mask|value&mask) {
			return
		}
	}
}
