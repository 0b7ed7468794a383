package periphspi

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"gopal/core"
	"gopal/hw"
	"gopal/sim"
)

func newPort(t *testing.T) (*Port, *sim.Board, *sim.RegisterFile) {
	t.Helper()
	b := sim.NewBoard()
	eic := core.NewEIC(b.Ints)
	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx, eic.Service)
	t.Cleanup(func() {
		cancel()
		<-b.Ints.Done()
	})

	cs, _ := b.Port("C")
	dev := sim.NewRegisterFile()
	dev.AttachCS(cs, 1, false)
	b.SPI1.Attach(dev)

	d := core.NewSPIDriver("spi1", b.SPI1, eic)
	base := core.SPIConfig{SPIPlatformConfig: core.SPIPlatformConfig{
		CS:       core.ChipSelect{Port: cs, Pad: 1},
		Transfer: core.TransferIRQ,
		RxIRQ:    sim.SPI1RxIRQ,
	}}
	return New(d, base), b, dev
}

func TestConnect(t *testing.T) {
	p, b, _ := newPort(t)
	if err := p.LimitSpeed(2 * physic.MegaHertz); err != nil {
		t.Fatal(err)
	}
	c, err := p.Connect(10*physic.MegaHertz, spi.Mode2, 8)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer p.Close()

	con := b.SPI1.Control()
	if con&hw.SPICON_CKP == 0 || con&hw.SPICON_CKE == 0 || con&hw.SPICON_MSTEN == 0 {
		t.Errorf("CON %#x does not match mode 2 master", con)
	}
	// 2 MHz from a 40 MHz bus clock.
	if got := b.SPI1.Baud(); got != 9 {
		t.Errorf("BRG = %d, want 9", got)
	}
	if c.Duplex() != conn.Full {
		t.Error("Expected a full duplex connection")
	}
	if _, err := p.Connect(physic.MegaHertz, spi.Mode0, 8); !errors.Is(err, ErrConnected) {
		t.Errorf("Expected ErrConnected, got %v", err)
	}
}

func TestConnectRejects(t *testing.T) {
	p, _, _ := newPort(t)
	tests := []struct {
		name string
		mode spi.Mode
		bits int
		want error
	}{
		{"half duplex", spi.Mode0 | spi.HalfDuplex, 8, ErrUnsupported},
		{"lsb first", spi.Mode0 | spi.LSBFirst, 8, ErrUnsupported},
		{"bits", spi.Mode0, 9, ErrBits},
	}
	for _, tt := range tests {
		if _, err := p.Connect(physic.MegaHertz, tt.mode, tt.bits); !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
	p.Close()
	if _, err := p.Connect(physic.MegaHertz, spi.Mode0, 8); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestTxAndPackets(t *testing.T) {
	p, _, dev := newPort(t)
	c, err := p.Connect(0, spi.Mode0, 8)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Write three registers in one transaction.
	if err := c.Tx([]byte{0x80 | 0x05, 1, 2, 3}, nil); err != nil {
		t.Fatalf("Tx failed: %v", err)
	}
	if dev.Get(0x07) != 3 {
		t.Errorf("Register 7 = %d, want 3", dev.Get(0x07))
	}

	// Address and data as two packets under one chip select.
	rx := make([]byte, 3)
	err = c.TxPackets([]spi.Packet{
		{W: []byte{0x05}, KeepCS: true},
		{W: make([]byte, 3), R: rx},
	})
	if err != nil {
		t.Fatalf("TxPackets failed: %v", err)
	}
	if !bytes.Equal(rx, []byte{1, 2, 3}) {
		t.Errorf("Read %v, want [1 2 3]", rx)
	}

	// Without KeepCS the second packet starts a new transaction, so its
	// first byte is taken as an address.
	dev.Set(0x00, 0x42)
	err = c.TxPackets([]spi.Packet{
		{W: []byte{0x05}},
		{W: make([]byte, 2), R: rx[:2]},
	})
	if err != nil {
		t.Fatalf("TxPackets failed: %v", err)
	}
	if rx[0] != 0 || rx[1] != 0x42 {
		t.Errorf("Read %v, expected a fresh transaction from register 0", rx[:2])
	}

	if err := c.TxPackets([]spi.Packet{{W: []byte{1}, BitsPerWord: 16}}); !errors.Is(err, ErrBits) {
		t.Errorf("Expected ErrBits, got %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if p.d.State() != core.SPIStop {
		t.Errorf("Close left the driver in %v", p.d.State())
	}
}

func TestTxPacketsTimeoutReleasesChipSelect(t *testing.T) {
	p, b, dev := newPort(t)
	sc, err := p.Connect(0, spi.Mode0, 8)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	c := sc.(*Conn)
	c.Timeout = 20 * time.Millisecond
	cs, _ := b.Port("C")
	asserted := func() bool { return cs.ReadLatch()&(1<<1) == 0 }

	b.SPI1.Stall(true)
	err = c.TxPackets([]spi.Packet{{W: []byte{0x80, 9}, KeepCS: true}})
	if !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("Expected a timeout, got %v", err)
	}
	b.SPI1.Stall(false)

	deadline := time.Now().Add(time.Second)
	for asserted() || p.d.BusHeld() {
		if time.Now().After(deadline) {
			t.Fatalf("Chip select asserted %v, bus held %v after the stalled packet completed", asserted(), p.d.BusHeld())
		}
		time.Sleep(time.Millisecond)
	}

	// The next transaction is framed by its own chip select again.
	c.Timeout = time.Second
	if err := c.Tx([]byte{0x80 | 0x02, 0x33}, nil); err != nil {
		t.Fatalf("Tx failed: %v", err)
	}
	if dev.Get(0x02) != 0x33 || asserted() {
		t.Errorf("Register 2 = %#x, chip select asserted %v", dev.Get(0x02), asserted())
	}
	p.Close()
}
