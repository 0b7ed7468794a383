package sim

import (
	"sync"

	"gopal/hw"
)

// Peer is the device on the far side of an SPI bus. Shift receives each
// frame clocked out by the unit and returns the frame clocked back in.
type Peer interface {
	Shift(out uint32, bits int) uint32
}

// PeerFunc adapts a function to Peer.
type PeerFunc func(out uint32, bits int) uint32

func (f PeerFunc) Shift(out uint32, bits int) uint32 { return f(out, bits) }

// Loopback ties MOSI to MISO.
var Loopback = PeerFunc(func(out uint32, _ int) uint32 { return out })

// SPI is one simulated SPI unit. A write to BUF shifts a whole frame at
// once: the received frame lands in BUF, SPIRBF is set and the receive
// interrupt line is raised.
//
// SPI satisfies core.SPIPort.
type SPI struct {
	hw.SPIRegs

	Name string

	busClock uint32
	rxIRQ    int
	ints     *Interrupts

	mu      sync.Mutex
	stalled bool
	held    bool // a frame is stuck in the shift register
	peer    Peer
	sent    []uint32
}

// NewSPI returns a unit clocked from busClock that raises rxIRQ on ints when
// a frame has been received. ints may be nil for a polled-only unit.
func NewSPI(name string, busClock uint32, ints *Interrupts, rxIRQ int) *SPI {
	return &SPI{Name: name, busClock: busClock, ints: ints, rxIRQ: rxIRQ}
}

// Attach connects the peer device. With no peer the input line floats high.
func (s *SPI) Attach(p Peer) {
	s.mu.Lock()
	s.peer = p
	s.mu.Unlock()
}

// Stall makes the unit stop completing frames, as a wedged peripheral would.
// Releasing the stall completes the frame that was stuck, if any.
func (s *SPI) Stall(on bool) {
	s.mu.Lock()
	s.stalled = on
	if on || !s.held {
		s.mu.Unlock()
		return
	}
	s.held = false
	out := s.sent[len(s.sent)-1]
	s.shiftLocked(out, hw.FrameBits(s.CON.Get()))
	s.mu.Unlock()
	s.raise()
}

// RxIRQ returns the receive interrupt line of the unit.
func (s *SPI) RxIRQ() int { return s.rxIRQ }

// Sent returns a copy of every frame clocked out so far.
func (s *SPI) Sent() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint32(nil), s.sent...)
}

// ResetLog forgets the frames recorded by Sent.
func (s *SPI) ResetLog() {
	s.mu.Lock()
	s.sent = s.sent[:0]
	s.mu.Unlock()
}

func (s *SPI) SetControl(con uint32) {
	s.CON.Set(con)
	if con&hw.SPICON_ON == 0 {
		s.mu.Lock()
		s.held = false
		s.mu.Unlock()
		s.STAT.Set(hw.SPISTAT_SPITBE)
		s.BUF.Set(0)
	}
}

func (s *SPI) Control() uint32 { return s.CON.Get() }
func (s *SPI) SetBaud(brg uint32) { s.BRG.Set(brg & hw.SPIBRG_MAX) }
func (s *SPI) Baud() uint32 { return s.BRG.Get() }
func (s *SPI) Status() uint32 { return s.STAT.Get() }
func (s *SPI) BusClock() uint32 { return s.busClock }
func (s *SPI) FrameBits() int { return hw.FrameBits(s.CON.Get()) }
func (s *SPI) Enabled() bool { return s.CON.HasBits(hw.SPICON_ON) }
func (s *SPI) Overflowed() bool { return s.STAT.HasBits(hw.SPISTAT_SPIROV) }
func (s *SPI) ClearOverflow() { s.STAT.ClearBits(hw.SPISTAT_SPIROV) }

// ReadBuf reads the received frame and clears SPIRBF.
func (s *SPI) ReadBuf() uint32 {
	v := s.BUF.Get()
	s.STAT.ClearBits(hw.SPISTAT_SPIRBF)
	return v
}

// WriteBuf clocks one frame out.
func (s *SPI) WriteBuf(frame uint32) {
	con := s.CON.Get()
	if con&hw.SPICON_ON == 0 {
		return
	}
	bits := hw.FrameBits(con)
	out := frame & hw.FrameMask(bits)

	s.mu.Lock()
	s.sent = append(s.sent, out)
	if s.stalled {
		s.held = true
		s.STAT.SetBits(hw.SPISTAT_SPIBUSY)
		s.mu.Unlock()
		return
	}
	s.shiftLocked(out, bits)
	s.mu.Unlock()
	s.raise()
}

func (s *SPI) shiftLocked(out uint32, bits int) {
	mask := hw.FrameMask(bits)
	in := mask
	if s.peer != nil {
		in = s.peer.Shift(out, bits) & mask
	}
	s.BUF.Set(in)
	if s.STAT.HasBits(hw.SPISTAT_SPIRBF) {
		s.STAT.SetBits(hw.SPISTAT_SPIROV)
	}
	s.STAT.ReplaceBits(hw.SPISTAT_SPIRBF|hw.SPISTAT_SPITBE, hw.SPISTAT_SPIRBF|hw.SPISTAT_SPITBE|hw.SPISTAT_SPIBUSY)
}

func (s *SPI) raise() {
	if s.ints != nil && s.rxIRQ >= 0 {
		s.ints.Raise(s.rxIRQ)
	}
}
