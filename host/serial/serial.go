// Package serial opens the serial link to a board running the SPI bridge.
package serial

import (
	"errors"
	"io"
	"time"
)

// Port is an open serial link.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output.
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC ignores it)
	Baud int

	// ReadTimeout bounds one read. Zero blocks. The bridge client needs a
	// timeout to notice a cancelled context.
	ReadTimeout time.Duration
}

// ErrNoDevice is returned when Config names no device.
var ErrNoDevice = errors.New("serial: no device given")

// DefaultConfig returns the settings the bridge firmware expects.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}

func (c *Config) validate() error {
	if c == nil || c.Device == "" {
		return ErrNoDevice
	}
	if c.Baud <= 0 {
		return errors.New("serial: baud rate must be positive")
	}
	if c.ReadTimeout < 0 {
		return errors.New("serial: negative read timeout")
	}
	return nil
}
