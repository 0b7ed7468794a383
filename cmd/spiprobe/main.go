// Command spiprobe runs SPI transactions through the bridge, either on a
// board attached over a serial port or on an in-process simulated board.
//
// Usage:
//
//	spiprobe [flags] buses
//	spiprobe [flags] -bus spi1 exchange 0x80,0
//	spiprobe -sim -bus spi2 poll 0x1234
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"gopal/bridge"
	"gopal/config"
	"gopal/host/serial"
)

type options struct {
	device  string
	baud    int
	sim     bool
	board   string
	bus     string
	timeout time.Duration
	verbose bool
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	var opt options
	fs := flag.NewFlagSet("spiprobe", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opt.device, "device", "/dev/ttyACM0", "Serial device path")
	fs.IntVar(&opt.baud, "baud", 115200, "Baud rate (ignored for USB CDC)")
	fs.BoolVar(&opt.sim, "sim", false, "Run against an in-process simulated board")
	fs.StringVar(&opt.board, "board", "", "JSON board description for -sim")
	fs.StringVar(&opt.bus, "bus", "spi1", "Bus to operate on")
	fs.DurationVar(&opt.timeout, "timeout", 5*time.Second, "Overall deadline")
	fs.BoolVar(&opt.verbose, "verbose", false, "Print the trace ring after the operation")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *noColor {
		color.NoColor = true
	}
	if fs.NArg() == 0 {
		usage(fs)
		return errors.New("no operation given")
	}
	op, err := parseOp(fs.Args())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opt.timeout)
	defer cancel()

	var link io.ReadWriter
	if opt.sim {
		board := config.DefaultSimBoard()
		if opt.board != "" {
			data, err := os.ReadFile(opt.board)
			if err != nil {
				return fmt.Errorf("read board: %w", err)
			}
			if board, err = config.LoadBoard(data); err != nil {
				return err
			}
		}
		s, err := startSim(ctx, board)
		if err != nil {
			return err
		}
		defer s.Close()
		link = s.host
	} else {
		cfg := serial.DefaultConfig(opt.device)
		cfg.Baud = opt.baud
		port, err := serial.Open(cfg)
		if err != nil {
			return err
		}
		defer port.Close()
		if err := port.Flush(); err != nil {
			return fmt.Errorf("flush %s: %w", opt.device, err)
		}
		link = port
	}

	client, err := bridge.Connect(ctx, link)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	p := newPrinter(out)
	if err := op.do(ctx, client, opt.bus, p); err != nil {
		return err
	}
	if opt.verbose && op.name != "trace" {
		evts, err := client.Trace(ctx)
		if err != nil {
			return err
		}
		p.events(evts)
	}
	return nil
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintln(w, "Usage: spiprobe [flags] <operation> [argument]")
	fmt.Fprintln(w, "\nOperations:")
	fmt.Fprintln(w, "  buses           - List the buses the board exposes")
	fmt.Fprintln(w, "  exchange BYTES  - Full-duplex transfer, prints what was received")
	fmt.Fprintln(w, "  send BYTES      - Transmit only")
	fmt.Fprintln(w, "  receive N       - Receive N frames")
	fmt.Fprintln(w, "  ignore N        - Clock N frames and discard them")
	fmt.Fprintln(w, "  poll FRAME      - Exchange one frame without interrupts")
	fmt.Fprintln(w, "  state           - Show the driver state")
	fmt.Fprintln(w, "  trace           - Dump the device trace ring")
	fmt.Fprintln(w, "\nBYTES is hex, optionally split by commas or colons (e.g. 80,00 or 8000).")
	fmt.Fprintln(w, "\nFlags:")
	fs.PrintDefaults()
}
