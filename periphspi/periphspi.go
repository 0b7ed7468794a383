// Package periphspi exposes an SPI driver as a periph.io SPI port, so
// device drivers written against periph.io/x/conn run on top of it.
package periphspi

import (
	"errors"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"gopal/core"
)

var (
	ErrConnected   = errors.New("periphspi: port already connected")
	ErrClosed      = errors.New("periphspi: port closed")
	ErrUnsupported = errors.New("periphspi: unsupported mode")
	ErrBits        = errors.New("periphspi: bits per word must be 8, 16 or 32")
)

// DefaultFrequency is used when Connect is given no frequency.
const DefaultFrequency = physic.MegaHertz

// Port is a spi.PortCloser over a stopped SPI driver. Connect starts the
// driver with the requested clock, mode and word size; Close stops it.
type Port struct {
	d    *core.SPIDriver
	base core.SPIConfig

	mu        sync.Mutex
	limit     physic.Frequency
	connected bool
	closed    bool
}

var _ spi.PortCloser = (*Port)(nil)

// New wraps d. base supplies the chip select and transfer settings; its
// clock, mode and width are replaced at Connect. A completion callback in
// base is dropped, since periph connections block until done.
func New(d *core.SPIDriver, base core.SPIConfig) *Port {
	base.OnComplete = nil
	return &Port{d: d, base: base}
}

func (p *Port) String() string { return "periphspi(" + p.d.Name() + ")" }

// LimitSpeed caps the frequency of later Connect calls.
func (p *Port) LimitSpeed(f physic.Frequency) error {
	if f <= 0 {
		return errors.New("periphspi: invalid speed limit")
	}
	p.mu.Lock()
	p.limit = f
	p.mu.Unlock()
	return nil
}

// Connect starts the driver and returns the connection. Half duplex and
// LSB-first modes are not supported by the unit.
func (p *Port) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, ErrClosed
	case p.connected:
		return nil, ErrConnected
	case mode&(spi.HalfDuplex|spi.LSBFirst) != 0:
		return nil, ErrUnsupported
	case bits != 8 && bits != 16 && bits != 32:
		return nil, ErrBits
	}
	if f <= 0 {
		f = DefaultFrequency
	}
	if p.limit > 0 && f > p.limit {
		f = p.limit
	}

	cfg := p.base
	cfg.ClockHz = uint32(f / physic.Hertz)
	cfg.ClockMode = core.ClockMode(mode & spi.Mode3)
	cfg.Width = core.DataWidth(bits)
	cfg.Master = true
	if mode&spi.NoCS != 0 {
		cfg.CS = core.ChipSelect{}
	}
	p.d.Start(cfg)
	p.connected = true
	return &Conn{BusAdapter: core.NewBusAdapter(p.d), port: p, freq: f}, nil
}

// Close stops the driver. The port cannot be reused.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.connected {
		p.d.Stop()
	}
	return nil
}

// Conn is the spi.Conn returned by Port.Connect. Tx comes from the
// embedded adapter.
type Conn struct {
	*core.BusAdapter
	port *Port
	freq physic.Frequency
}

var _ spi.Conn = (*Conn)(nil)

func (c *Conn) String() string { return c.port.String() + "@" + c.freq.String() }

// Duplex implements conn.Conn.
func (c *Conn) Duplex() conn.Duplex { return conn.Full }

// Halt implements conn.Resource. A transfer cannot be cut short, so there
// is nothing to halt.
func (c *Conn) Halt() error { return nil }

// TxPackets runs the packets back to back. Chip select stays asserted
// between two packets when the first has KeepCS set.
func (c *Conn) TxPackets(pkts []spi.Packet) error {
	width := int(c.port.d.Config().Width)
	var sel *core.Selection
	defer func() {
		// After a timed-out packet this deasserts once the transfer ends.
		if sel != nil {
			sel.Unselect()
		}
	}()
	for _, pkt := range pkts {
		if pkt.BitsPerWord != 0 && int(pkt.BitsPerWord) != width {
			return ErrBits
		}
		if sel == nil {
			var err error
			if sel, err = c.Select(); err != nil {
				return err
			}
		}
		if err := c.TxSelected(sel, pkt.W, pkt.R); err != nil {
			return err
		}
		if !pkt.KeepCS {
			sel.Unselect()
			sel = nil
		}
	}
	return nil
}
