//go:build rp2040

package main

import (
	"context"
	"machine"
	"time"

	"gopal/bridge"
	"gopal/core"
	"gopal/hw"
)

// Receive lines of the SPI units. The numbers follow the NVIC table; the
// lines are flagged in software and serviced from the main loop.
const (
	irqPIO0 = 7
	irqSPI0 = 18
)

// Chip-select pads.
const (
	csSPI0 = 17
	csSPI1 = 13
	csPIO0 = 5
)

var (
	intc = &hw.IntController{}
	eic  *core.EIC

	// Debug counters
	bridgeRestarts uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	InitDebugUART()
	core.SetDebugWriter(DebugPrintln)
	core.SetDebugEnabled(true)

	eic = core.NewEIC(intc)
	port := newPinPort()
	clock := machine.CPUFrequency()

	spi0 := core.NewSPIDriver("spi0",
		hw.NewFrameUnit(&hwBus{spi: machine.SPI0, pins: spi0Pins}, clock, intc, irqSPI0), eic)
	spi0.Start(core.SPIConfig{SPIPlatformConfig: core.SPIPlatformConfig{
		CS:      core.ChipSelect{Port: port, Pad: csSPI0},
		Width:   core.Width8,
		Master:  true,
		ClockHz: 1000000,
		// Interrupt-driven: the main loop services the completion line.
		Transfer: core.TransferIRQ,
		RxIRQ:    irqSPI0,
	}})

	spi1 := core.NewSPIDriver("spi1",
		hw.NewFrameUnit(&hwBus{spi: machine.SPI1, pins: spi1Pins}, clock, nil, -1), eic)
	spi1.Start(core.SPIConfig{SPIPlatformConfig: core.SPIPlatformConfig{
		CS:        core.ChipSelect{Port: port, Pad: csSPI1},
		Width:     core.Width16,
		Master:    true,
		ClockHz:   4000000,
		ClockMode: core.ClockMode3,
		Transfer:  core.TransferPolled,
	}})

	// The PIO program implements CPHA=0 and CPHA=1 with an idle-low clock.
	pio0 := core.NewSPIDriver("pio0",
		hw.NewFrameUnit(newPIOBus(0, 0, pioPins), clock, intc, irqPIO0), eic)
	pio0.Start(core.SPIConfig{SPIPlatformConfig: core.SPIPlatformConfig{
		CS:        core.ChipSelect{Port: port, Pad: csPIO0},
		Width:     core.Width8,
		Master:    true,
		ClockHz:   500000,
		ClockMode: core.ClockMode0,
		Transfer:  core.TransferIRQ,
		RxIRQ:     irqPIO0,
	}})

	srv := bridge.NewServer(map[string]*core.SPIDriver{
		"spi0": spi0,
		"spi1": spi1,
		"pio0": pio0,
	})
	go bridgeLoop(srv)

	// Main loop: the interrupt vector for the software-flagged lines.
	for {
		eic.Service()
		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// bridgeLoop serves the host, restarting after link errors and panics.
func bridgeLoop(srv *bridge.Server) {
	defer func() {
		if r := recover(); r != nil {
			bridgeRestarts++
			time.Sleep(100 * time.Millisecond)
			go bridgeLoop(srv)
		}
	}()
	for {
		if err := srv.Serve(context.Background(), usbLink{}); err != nil {
			bridgeRestarts++
			core.DebugPrintln("bridge: " + err.Error())
			time.Sleep(10 * time.Millisecond)
		}
	}
}
