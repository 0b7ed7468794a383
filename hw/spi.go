package hw

// SPIxCON bits
const (
	SPICON_ON     = 1 << 15 // unit enabled
	SPICON_MODE32 = 1 << 11 // 32-bit frames
	SPICON_MODE16 = 1 << 10 // 16-bit frames (ignored when MODE32 is set)
	SPICON_SMP    = 1 << 9  // sample input at end of data output time
	SPICON_CKE    = 1 << 8  // output changes on active-to-idle clock edge
	SPICON_CKP    = 1 << 6  // clock idles high
	SPICON_MSTEN  = 1 << 5  // master mode
)

// SPIxSTAT bits
const (
	SPISTAT_SPIRBF  = 1 << 0  // receive buffer full
	SPISTAT_SPITBE  = 1 << 3  // transmit buffer empty
	SPISTAT_SPIROV  = 1 << 6  // receive overflow
	SPISTAT_SPIBUSY = 1 << 11 // shift register busy
)

// SPIBRG_MAX is the largest baud rate generator divisor.
const SPIBRG_MAX = 0x1FFF

// SPIRegs is the register block of one SPI unit.
type SPIRegs struct {
	CON  Reg32
	STAT Reg32
	BRG  Reg32
	BUF  Reg32
}

// FrameBits decodes the frame width selected by a CON value.
func FrameBits(con uint32) int {
	switch {
	case con&SPICON_MODE32 != 0:
		return 32
	case con&SPICON_MODE16 != 0:
		return 16
	}
	return 8
}

// FrameMask returns the mask of a frame of the given width.
func FrameMask(bits int) uint32 {
	if bits >= 32 {
		return 0xFFFFFFFF
	}
	return 1<<uint(bits) - 1
}
