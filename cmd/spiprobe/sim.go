package main

import (
	"context"
	"fmt"
	"net"
	"sort"

	"gopal/bridge"
	"gopal/config"
	"gopal/core"
	"gopal/sim"
)

// simWhoAmI is preloaded at register 0 of every simulated register file.
const simWhoAmI = 0x5A

// simBoard is a simulated chip running the bridge server on one end of an
// in-memory pipe.
type simBoard struct {
	host   net.Conn
	dev    net.Conn
	cancel context.CancelFunc
	served chan error
	board  *sim.Board
}

// startSim brings up every bus of desc on a simulated chip. A bus with a
// chip select gets a register file behind it, a bus without one is wired
// as a loopback.
func startSim(ctx context.Context, desc *config.Board) (*simBoard, error) {
	b := sim.NewBoard()
	eic := core.NewEIC(b.Ints)
	resolve := func(name string) (core.IOPort, bool) {
		p, ok := b.Port(name)
		return p, ok
	}

	names := desc.BusNames()
	sort.Strings(names)
	units := make(map[string]string)
	drivers := make(map[string]*core.SPIDriver, len(names))
	for _, name := range names {
		bc := desc.Buses[name]
		unit, ok := b.SPI(bc.Unit)
		if !ok {
			return nil, fmt.Errorf("bus %s: no unit %q on the simulated board", name, bc.Unit)
		}
		if other, dup := units[bc.Unit]; dup {
			return nil, fmt.Errorf("bus %s: unit %s already used by %s", name, bc.Unit, other)
		}
		units[bc.Unit] = name
		cfg, err := bc.SPIConfig(resolve)
		if err != nil {
			return nil, fmt.Errorf("bus %s: %w", name, err)
		}
		if cfg.Transfer == core.TransferIRQ && int(cfg.RxIRQ) != unit.RxIRQ() {
			return nil, fmt.Errorf("bus %s: rx_irq %d, unit %s raises %d", name, cfg.RxIRQ, bc.Unit, unit.RxIRQ())
		}

		if bc.CS != nil {
			port, _ := b.Port(bc.CS.Port)
			dev := sim.NewRegisterFile()
			dev.Set(0, simWhoAmI)
			dev.AttachCS(port, bc.CS.Pad, bc.CS.ActiveHigh)
			unit.Attach(dev)
		} else {
			unit.Attach(sim.Loopback)
		}
		d := core.NewSPIDriver(name, unit, eic)
		d.Start(cfg)
		drivers[name] = d
	}

	ctx, cancel := context.WithCancel(ctx)
	b.Start(ctx, eic.Service)
	srv := bridge.NewServer(drivers)
	devEnd, hostEnd := net.Pipe()
	s := &simBoard{
		host:   hostEnd,
		dev:    devEnd,
		cancel: cancel,
		served: make(chan error, 1),
		board:  b,
	}
	go func() { s.served <- srv.Serve(ctx, devEnd) }()
	return s, nil
}

// Close stops the server and the interrupt context.
func (s *simBoard) Close() error {
	s.cancel()
	s.host.Close()
	s.dev.Close()
	<-s.served
	<-s.board.Ints.Done()
	return nil
}
