// Package config loads JSON board descriptions and turns each SPI bus
// entry into a driver configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gopal/core"
)

// ErrInvalidBoard wraps every validation failure.
var ErrInvalidBoard = errors.New("invalid board description")

// Board describes the SPI buses of one board.
type Board struct {
	Name  string               `json:"name"`
	Buses map[string]BusConfig `json:"buses"`
}

// PinConfig names one pad.
type PinConfig struct {
	Port       string `json:"port"`
	Pad        uint8  `json:"pad"`
	ActiveHigh bool   `json:"active_high,omitempty"`
}

// BusConfig describes one SPI bus.
type BusConfig struct {
	Unit      string     `json:"unit"` // hardware unit, defaults to the bus name
	CS        *PinConfig `json:"cs,omitempty"`
	Width     int        `json:"width"`
	Slave     bool       `json:"slave,omitempty"`
	ClockHz   uint32     `json:"clock_hz"`
	Mode      int        `json:"mode"`
	Transfer  string     `json:"transfer"` // "polled" or "irq"
	RxIRQ     *int       `json:"rx_irq,omitempty"`
	PollLimit int        `json:"poll_limit,omitempty"`
}

// PortResolver finds a GPIO port by name.
type PortResolver func(name string) (core.IOPort, bool)

// LoadBoard parses a JSON board description and applies defaults.
func LoadBoard(jsonData []byte) (*Board, error) {
	var board Board
	if err := json.Unmarshal(jsonData, &board); err != nil {
		return nil, fmt.Errorf("parse board: %w", err)
	}
	applyDefaults(&board)
	if err := board.Validate(); err != nil {
		return nil, err
	}
	return &board, nil
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(board *Board) {
	if board.Name == "" {
		board.Name = "board"
	}
	for name, bus := range board.Buses {
		if bus.Unit == "" {
			bus.Unit = name
		}
		if bus.Width == 0 {
			bus.Width = 8
		}
		if bus.ClockHz == 0 && !bus.Slave {
			bus.ClockHz = 1000000 // 1 MHz
		}
		if bus.Transfer == "" {
			bus.Transfer = "irq"
		}
		board.Buses[name] = bus
	}
}

// Validate checks every bus entry.
func (b *Board) Validate() error {
	if len(b.Buses) == 0 {
		return fmt.Errorf("%w: no buses", ErrInvalidBoard)
	}
	for _, name := range b.BusNames() {
		if err := b.Buses[name].validate(); err != nil {
			return fmt.Errorf("%w: bus %s: %v", ErrInvalidBoard, name, err)
		}
	}
	return nil
}

// BusNames returns the bus names in sorted order.
func (b *Board) BusNames() []string {
	names := make([]string, 0, len(b.Buses))
	for name := range b.Buses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c BusConfig) validate() error {
	switch c.Width {
	case 8, 16, 32:
	default:
		return fmt.Errorf("width %d not 8, 16 or 32", c.Width)
	}
	if c.Mode < 0 || c.Mode > 3 {
		return fmt.Errorf("clock mode %d out of range", c.Mode)
	}
	switch c.Transfer {
	case "polled":
	case "irq":
		if c.RxIRQ == nil {
			return errors.New("irq transfer needs rx_irq")
		}
		if !core.IRQ(*c.RxIRQ).Valid() {
			return fmt.Errorf("rx_irq %d out of range", *c.RxIRQ)
		}
	default:
		return fmt.Errorf("unknown transfer mode %q", c.Transfer)
	}
	if c.CS != nil && c.CS.Pad >= 32 {
		return fmt.Errorf("cs pad %d out of range", c.CS.Pad)
	}
	if c.PollLimit < 0 {
		return errors.New("negative poll_limit")
	}
	return nil
}

// SPIConfig converts the entry into a driver configuration, resolving the
// chip-select port through ports.
func (c BusConfig) SPIConfig(ports PortResolver) (core.SPIConfig, error) {
	if err := c.validate(); err != nil {
		return core.SPIConfig{}, fmt.Errorf("%w: %v", ErrInvalidBoard, err)
	}
	pc := core.SPIPlatformConfig{
		Width:     core.DataWidth(c.Width),
		Master:    !c.Slave,
		ClockHz:   c.ClockHz,
		ClockMode: core.ClockMode(c.Mode),
		PollLimit: c.PollLimit,
	}
	if c.Transfer == "irq" {
		pc.Transfer = core.TransferIRQ
		pc.RxIRQ = core.IRQ(*c.RxIRQ)
	}
	if c.CS != nil {
		port, ok := ports(c.CS.Port)
		if !ok {
			return core.SPIConfig{}, fmt.Errorf("%w: unknown cs port %q", ErrInvalidBoard, c.CS.Port)
		}
		pc.CS = core.ChipSelect{Port: port, Pad: c.CS.Pad, ActiveHigh: c.CS.ActiveHigh}
	}
	return core.SPIConfig{SPIPlatformConfig: pc}, nil
}

// DefaultSimBoard describes the simulated board: spi1 drives a register
// file behind chip select B3 using interrupts, spi2 is a polled 16-bit
// loopback.
func DefaultSimBoard() *Board {
	irq1 := 24
	return &Board{
		Name: "sim",
		Buses: map[string]BusConfig{
			"spi1": {
				Unit:     "spi1",
				CS:       &PinConfig{Port: "B", Pad: 3},
				Width:    8,
				ClockHz:  1000000,
				Transfer: "irq",
				RxIRQ:    &irq1,
			},
			"spi2": {
				Unit:     "spi2",
				Width:    16,
				ClockHz:  4000000,
				Mode:     3,
				Transfer: "polled",
			},
		},
	}
}
