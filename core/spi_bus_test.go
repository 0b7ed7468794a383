package core

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"gopal/sim"
)

func TestBusAdapterTx(t *testing.T) {
	b := newBench(t)
	b.board.SPI1.Attach(sim.Loopback)
	d := b.driver()
	d.Start(b.config(TransferIRQ))
	defer d.Stop()
	bus := NewBusAdapter(d)
	bus.Timeout = time.Second

	tests := []struct {
		name   string
		w      []byte
		rlen   int
		wantRx []byte
		sent   int
	}{
		{"exchange", []byte{1, 2, 3}, 3, []byte{1, 2, 3}, 3},
		{"write only", []byte{4, 5}, 0, []byte{}, 2},
		{"read only", nil, 2, []byte{0xFF, 0xFF}, 2},
		{"short write", []byte{6}, 3, []byte{6, 0, 0}, 3},
		{"short read", []byte{7, 8, 9}, 1, []byte{7}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b.board.SPI1.ResetLog()
			r := make([]byte, tt.rlen)
			if err := bus.Tx(tt.w, r); err != nil {
				t.Fatalf("Tx failed: %v", err)
			}
			if !bytes.Equal(r, tt.wantRx) {
				t.Errorf("Read %x, want %x", r, tt.wantRx)
			}
			if got := len(b.board.SPI1.Sent()); got != tt.sent {
				t.Errorf("Clocked %d frames, want %d", got, tt.sent)
			}
		})
	}

	v, err := bus.Transfer(0x42)
	if err != nil || v != 0x42 {
		t.Errorf("Transfer = %#x, %v", v, err)
	}
}

func TestBusAdapterWideFrames(t *testing.T) {
	b := newBench(t)
	b.board.SPI1.Attach(sim.Loopback)
	d := b.driver()
	cfg := b.config(TransferPolled)
	cfg.Width = Width16
	d.Start(cfg)
	defer d.Stop()
	bus := NewBusAdapter(d)

	if err := bus.Tx([]byte{1, 2, 3}, nil); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("Expected ErrShortBuffer for a partial frame, got %v", err)
	}
	if v, err := bus.Transfer(0x99); err != nil || v != 0x99 {
		t.Errorf("Transfer = %#x, %v", v, err)
	}
}

func TestBusAdapterRejectsCallbackDriver(t *testing.T) {
	b := newBench(t)
	d := b.driver()
	cfg := b.config(TransferIRQ)
	cfg.OnComplete = func(*SPIDriver) {}
	d.Start(cfg)
	defer d.Stop()

	if err := NewBusAdapter(d).Tx([]byte{1}, nil); !errors.Is(err, ErrAsyncDriver) {
		t.Errorf("Expected ErrAsyncDriver, got %v", err)
	}
}
