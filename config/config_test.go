package config

import (
	"errors"
	"testing"

	"gopal/core"
	"gopal/hw"
)

func TestLoadBoardDefaults(t *testing.T) {
	board, err := LoadBoard([]byte(`{
		"buses": {
			"flash": {"unit": "spi1", "cs": {"port": "B", "pad": 3}, "rx_irq": 24},
			"adc":   {"transfer": "polled", "width": 16, "mode": 1, "clock_hz": 250000}
		}
	}`))
	if err != nil {
		t.Fatalf("LoadBoard failed: %v", err)
	}
	if board.Name != "board" {
		t.Errorf("Expected default name, got %q", board.Name)
	}

	flash := board.Buses["flash"]
	if flash.Width != 8 || flash.ClockHz != 1000000 || flash.Transfer != "irq" {
		t.Errorf("Defaults not applied: %+v", flash)
	}
	adc := board.Buses["adc"]
	if adc.Unit != "adc" || adc.ClockHz != 250000 {
		t.Errorf("Explicit values lost: %+v", adc)
	}
	if names := board.BusNames(); len(names) != 2 || names[0] != "adc" {
		t.Errorf("BusNames = %v", names)
	}
}

func TestLoadBoardInvalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"no buses", `{}`},
		{"width", `{"buses": {"a": {"width": 12, "transfer": "polled"}}}`},
		{"mode", `{"buses": {"a": {"mode": 4, "transfer": "polled"}}}`},
		{"irq missing", `{"buses": {"a": {}}}`},
		{"irq range", `{"buses": {"a": {"rx_irq": 75}}}`},
		{"transfer", `{"buses": {"a": {"transfer": "dma"}}}`},
		{"cs pad", `{"buses": {"a": {"transfer": "polled", "cs": {"port": "A", "pad": 40}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadBoard([]byte(tt.json)); !errors.Is(err, ErrInvalidBoard) {
				t.Errorf("Expected ErrInvalidBoard, got %v", err)
			}
		})
	}
	if _, err := LoadBoard([]byte(`{`)); err == nil || errors.Is(err, ErrInvalidBoard) {
		t.Errorf("Expected a parse error, got %v", err)
	}
}

func TestBusConfigSPIConfig(t *testing.T) {
	portB := hw.NewPort("B")
	ports := func(name string) (core.IOPort, bool) {
		if name == "B" {
			return portB, true
		}
		return nil, false
	}

	board := DefaultSimBoard()
	cfg, err := board.Buses["spi1"].SPIConfig(ports)
	if err != nil {
		t.Fatalf("SPIConfig failed: %v", err)
	}
	if cfg.Transfer != core.TransferIRQ || cfg.RxIRQ != 24 || !cfg.Master {
		t.Errorf("Unexpected config %+v", cfg.SPIPlatformConfig)
	}
	if cfg.CS.Port != core.IOPort(portB) || cfg.CS.Pad != 3 || cfg.CS.ActiveHigh {
		t.Errorf("Chip select not resolved: %+v", cfg.CS)
	}
	if cfg.OnComplete != nil {
		t.Error("Board configs never set a completion callback")
	}

	cfg, err = board.Buses["spi2"].SPIConfig(ports)
	if err != nil {
		t.Fatalf("SPIConfig failed: %v", err)
	}
	if cfg.Transfer != core.TransferPolled || cfg.Width != core.Width16 || cfg.ClockMode != core.ClockMode3 {
		t.Errorf("Unexpected config %+v", cfg.SPIPlatformConfig)
	}

	bad := board.Buses["spi1"]
	bad.CS = &PinConfig{Port: "Z", Pad: 1}
	if _, err := bad.SPIConfig(ports); !errors.Is(err, ErrInvalidBoard) {
		t.Errorf("Expected ErrInvalidBoard for an unknown port, got %v", err)
	}
}
