package hw

// FrameBus is a byte-oriented SPI controller, such as machine.SPI on
// chips without a PIC32-style register block.
type FrameBus interface {
	// Configure sets the clock rate and SPI mode (CPOL<<1 | CPHA).
	Configure(hz uint32, mode uint8) error
	// Transfer shifts one byte out and returns the byte shifted in.
	Transfer(b byte) (byte, error)
}

// FrameUnit presents a FrameBus through the SPI register block. Writing
// BUF shifts the frame synchronously, most significant byte first, then sets
// SPIRBF and raises the receive line. A failed transfer leaves SPIBUSY set
// and the line quiet, as a wedged unit would.
//
// A FrameUnit is driven by one bus holder at a time.
type FrameUnit struct {
	SPIRegs

	bus   FrameBus
	clock uint32
	intc  *IntController
	line  int
	err   error
}

// NewFrameUnit returns a unit over bus whose baud generator is fed by clock.
// Completed frames flag line on intc; intc may be nil for polled use.
func NewFrameUnit(bus FrameBus, clock uint32, intc *IntController, line int) *FrameUnit {
	u := &FrameUnit{bus: bus, clock: clock, intc: intc, line: line}
	u.STAT.Set(SPISTAT_SPITBE)
	return u
}

// Err returns the last configuration or transfer error.
func (u *FrameUnit) Err() error { return u.err }

// Mode decodes the SPI mode selected by CON.
func (u *FrameUnit) Mode() uint8 {
	con := u.CON.Get()
	var mode uint8
	if con&SPICON_CKP != 0 {
		mode |= 2
	}
	if con&SPICON_CKE == 0 {
		mode |= 1
	}
	return mode
}

// Frequency is the clock rate the baud generator setting yields.
func (u *FrameUnit) Frequency() uint32 {
	return u.clock / (2 * (u.BRG.Get() + 1))
}

// SetControl reconfigures the bus when the unit is switched on. If the bus
// rejects the settings the unit stays off.
func (u *FrameUnit) SetControl(con uint32) {
	if con&SPICON_ON == 0 {
		u.CON.Set(con)
		u.STAT.Set(SPISTAT_SPITBE)
		u.BUF.Set(0)
		return
	}
	u.CON.Set(con)
	if err := u.bus.Configure(u.Frequency(), u.Mode()); err != nil {
		u.err = err
		u.CON.ClearBits(SPICON_ON)
	}
}

func (u *FrameUnit) Control() uint32 { return u.CON.Get() }
func (u *FrameUnit) SetBaud(brg uint32) { u.BRG.Set(brg & SPIBRG_MAX) }
func (u *FrameUnit) Status() uint32 { return u.STAT.Get() }
func (u *FrameUnit) BusClock() uint32 { return u.clock }

// ReadBuf reads the received frame and clears SPIRBF.
func (u *FrameUnit) ReadBuf() uint32 {
	v := u.BUF.Get()
	u.STAT.ClearBits(SPISTAT_SPIRBF)
	return v
}

// WriteBuf shifts one frame. It does nothing while the unit is off.
func (u *FrameUnit) WriteBuf(frame uint32) {
	con := u.CON.Get()
	if con&SPICON_ON == 0 {
		return
	}
	bits := FrameBits(con)
	u.STAT.ReplaceBits(SPISTAT_SPIBUSY, SPISTAT_SPIBUSY|SPISTAT_SPITBE)

	var in uint32
	for shift := bits - 8; shift >= 0; shift -= 8 {
		b, err := u.bus.Transfer(byte(frame >> uint(shift)))
		if err != nil {
			u.err = err
			return
		}
		in |= uint32(b) << uint(shift)
	}

	u.BUF.Set(in)
	if u.STAT.HasBits(SPISTAT_SPIRBF) {
		u.STAT.SetBits(SPISTAT_SPIROV)
	}
	u.STAT.ReplaceBits(SPISTAT_SPIRBF|SPISTAT_SPITBE, SPISTAT_SPIRBF|SPISTAT_SPITBE|SPISTAT_SPIBUSY)
	if u.intc != nil && u.line >= 0 {
		u.intc.Raise(u.line)
	}
}
