//go:build rp2040

package main

import (
	"errors"
	"machine"

	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"
)

var errPIOReconfigure = errors.New("pio spi: settings differ from the loaded program")

// pioBus is a hw.FrameBus over a PIO state machine. The program is loaded
// on first use and stays resident, so later configurations must match it.
type pioBus struct {
	sm   pio.StateMachine
	pins spiPins
	spi  *piolib.SPI
	hz   uint32
	mode uint8
}

func newPIOBus(pioNum, smNum uint8, pins spiPins) *pioBus {
	block := pio.PIO0
	if pioNum == 1 {
		block = pio.PIO1
	}
	return &pioBus{sm: block.StateMachine(smNum), pins: pins}
}

func (b *pioBus) Configure(hz uint32, mode uint8) error {
	if b.spi != nil {
		if hz != b.hz || mode != b.mode {
			return errPIOReconfigure
		}
		return nil
	}
	spi, err := piolib.NewSPI(b.sm, machine.SPIConfig{
		Frequency: hz,
		SCK:       b.pins.sck,
		SDO:       b.pins.mosi,
		SDI:       b.pins.miso,
		Mode:      mode,
	})
	if err != nil {
		return err
	}
	b.spi, b.hz, b.mode = spi, hz, mode
	return nil
}

func (b *pioBus) Transfer(v byte) (byte, error) {
	return b.spi.Transfer(v)
}
