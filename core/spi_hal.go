package core

import "gopal/hw"

// SPIPort is one hardware SPI unit, the driver's view of its register
// block. Implementations exist for the simulated unit and for each target.
type SPIPort interface {
	SetControl(con uint32)
	Control() uint32
	SetBaud(brg uint32)
	Status() uint32
	WriteBuf(frame uint32)
	ReadBuf() uint32
	// BusClock is the peripheral clock feeding the baud rate generator.
	BusClock() uint32
}

// DataWidth is the frame size in bits.
type DataWidth uint8

const (
	Width8  DataWidth = 8
	Width16 DataWidth = 16
	Width32 DataWidth = 32
)

// Bytes returns the buffer bytes one frame occupies.
func (w DataWidth) Bytes() int { return int(w) / 8 }

func (w DataWidth) valid() bool {
	return w == Width8 || w == Width16 || w == Width32
}

// fill is the frame clocked out when there is nothing to transmit.
func (w DataWidth) fill() uint32 { return hw.FrameMask(int(w)) }

// ClockMode represents SPI clock polarity and phase (0-3)
// Mode 0: CPOL=0, CPHA=0 (clock idle low, sample on rising edge)
// Mode 1: CPOL=0, CPHA=1 (clock idle low, sample on falling edge)
// Mode 2: CPOL=1, CPHA=0 (clock idle high, sample on falling edge)
// Mode 3: CPOL=1, CPHA=1 (clock idle high, sample on rising edge)
type ClockMode uint8

const (
	ClockMode0 ClockMode = iota
	ClockMode1
	ClockMode2
	ClockMode3
)

// TransferMode selects how buffered transfers detect frame completion.
type TransferMode uint8

const (
	// TransferPolled spins on the receive-buffer-full flag inside the call.
	TransferPolled TransferMode = iota
	// TransferIRQ lets the receive interrupt move each frame.
	TransferIRQ
)

// ChipSelect is the pad that addresses the slave. A nil Port means the
// slave is selected by other means.
type ChipSelect struct {
	Port       IOPort
	Pad        uint8
	ActiveHigh bool
}

// DefaultPollLimit bounds the status reads spent waiting for one frame.
const DefaultPollLimit = 100000

// SPIPlatformConfig holds the settings specific to this SPI unit family.
type SPIPlatformConfig struct {
	CS        ChipSelect
	Width     DataWidth
	Master    bool
	ClockHz   uint32
	ClockMode ClockMode
	Transfer  TransferMode
	RxIRQ     IRQ
	PollLimit int // zero means DefaultPollLimit
}

// SPIConfig is the configuration applied by Start.
type SPIConfig struct {
	// OnComplete, when set, is called from the completion path instead of
	// waking the caller, and IRQ transfers return without waiting. It runs
	// with the bus still held and must neither start a transfer on the
	// same driver nor stop it.
	OnComplete func(d *SPIDriver)

	SPIPlatformConfig
}

func (c *SPIConfig) validate() error {
	switch {
	case !c.Width.valid():
		return ErrInvalidConfig
	case c.ClockMode > ClockMode3:
		return ErrInvalidConfig
	case c.Master && c.ClockHz == 0:
		return ErrInvalidConfig
	case c.Transfer > TransferIRQ:
		return ErrInvalidConfig
	case c.Transfer == TransferIRQ && !c.RxIRQ.Valid():
		return ErrIRQRange
	case c.PollLimit < 0:
		return ErrInvalidConfig
	}
	return nil
}

func (c *SPIConfig) pollLimit() int {
	if c.PollLimit == 0 {
		return DefaultPollLimit
	}
	return c.PollLimit
}

// control computes the CON value for the configuration, unit enabled.
func (c *SPIConfig) control() uint32 {
	con := uint32(hw.SPICON_ON)
	switch c.Width {
	case Width16:
		con |= hw.SPICON_MODE16
	case Width32:
		con |= hw.SPICON_MODE32
	}
	if c.Master {
		con |= hw.SPICON_MSTEN
	}
	// CKE is the inverse of CPHA on this unit.
	switch c.ClockMode {
	case ClockMode0:
		con |= hw.SPICON_CKE
	case ClockMode2:
		con |= hw.SPICON_CKP | hw.SPICON_CKE
	case ClockMode3:
		con |= hw.SPICON_CKP
	}
	return con
}

// baud computes the divisor giving the fastest clock not above ClockHz:
// f = busClock / (2 * (BRG + 1)).
func (c *SPIConfig) baud(busClock uint32) uint32 {
	if c.ClockHz == 0 {
		return 0
	}
	div := 2 * uint64(c.ClockHz)
	brg := (uint64(busClock) + div - 1) / div
	if brg > 0 {
		brg--
	}
	if brg > hw.SPIBRG_MAX {
		brg = hw.SPIBRG_MAX
	}
	return uint32(brg)
}
