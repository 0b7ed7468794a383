//go:build rp2040

package main

import (
	"machine"
)

// spiPins are the GPIOs of one SPI bus.
type spiPins struct {
	sck  machine.Pin
	mosi machine.Pin
	miso machine.Pin
}

// Bus pinouts, following the RP2040 function select table.
var (
	spi0Pins = spiPins{sck: machine.GPIO18, mosi: machine.GPIO19, miso: machine.GPIO16}
	spi1Pins = spiPins{sck: machine.GPIO10, mosi: machine.GPIO11, miso: machine.GPIO12}
	pioPins  = spiPins{sck: machine.GPIO2, mosi: machine.GPIO3, miso: machine.GPIO4}
)

// hwBus is a hw.FrameBus over one of the PL022 controllers.
type hwBus struct {
	spi  *machine.SPI
	pins spiPins
}

func (b *hwBus) Configure(hz uint32, mode uint8) error {
	return b.spi.Configure(machine.SPIConfig{
		Frequency: hz,
		SCK:       b.pins.sck,
		SDO:       b.pins.mosi, // SDO = Serial Data Out (MOSI)
		SDI:       b.pins.miso, // SDI = Serial Data In (MISO)
		Mode:      mode,
	})
}

func (b *hwBus) Transfer(v byte) (byte, error) {
	return b.spi.Transfer(v)
}
