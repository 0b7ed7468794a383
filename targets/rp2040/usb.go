//go:build rp2040

package main

import (
	"errors"
	"machine"
	"time"
)

// maxWriteStalls is how many zero-progress writes mark the host as gone.
const maxWriteStalls = 10

var errUSBStalled = errors.New("usb: host not reading")

// InitUSB initializes USB serial communication.
// machine.Serial is USB CDC on the RP2040; TinyGo's runtime sets the
// descriptors.
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// usbLink is the bridge's byte stream over USB CDC.
type usbLink struct{}

// Read blocks until at least one byte is available.
func (usbLink) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for machine.Serial.Buffered() == 0 {
		// Yield to avoid a busy loop
		time.Sleep(100 * time.Microsecond)
	}
	n := 0
	for n < len(p) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}

// Write sends all of p, handling partial writes. A host that stops
// reading fails the write so the bridge can restart.
func (usbLink) Write(p []byte) (int, error) {
	written, stalls := 0, 0
	for written < len(p) {
		n, err := machine.Serial.Write(p[written:])
		if err != nil {
			return written, err
		}
		if n == 0 {
			stalls++
			if stalls > maxWriteStalls {
				return written, errUSBStalled
			}
			time.Sleep(time.Millisecond)
			continue
		}
		stalls = 0
		written += n
	}
	return written, nil
}
