package core

import (
	"context"
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// ErrAsyncDriver is returned by BusAdapter when the driver reports
// completion through a callback, so a call could not wait for its data.
var ErrAsyncDriver = errors.New("spi driver completes asynchronously")

// BusAdapter lets device drivers from tinygo.org/x/drivers talk through an
// SPIDriver. The driver must be started without a completion callback.
type BusAdapter struct {
	d *SPIDriver

	// Timeout bounds each call. Zero waits forever.
	Timeout time.Duration
}

var _ drivers.SPI = (*BusAdapter)(nil)

// NewBusAdapter wraps d.
func NewBusAdapter(d *SPIDriver) *BusAdapter {
	return &BusAdapter{d: d}
}

func (b *BusAdapter) context() (context.Context, context.CancelFunc) {
	if b.Timeout <= 0 {
		return context.Background(), func() {}
	}
	return context.WithTimeout(context.Background(), b.Timeout)
}

// framer is the transfer surface shared by SPIDriver and Selection.
type framer interface {
	Exchange(ctx context.Context, n int, tx, rx []byte) error
	Send(ctx context.Context, n int, tx []byte) error
	Receive(ctx context.Context, n int, rx []byte) error
}

// Tx clocks max(len(w), len(r)) bytes. A short w is padded with zeros and
// a short r drops the excess. Lengths must be whole frames.
func (b *BusAdapter) Tx(w, r []byte) error { return b.tx(b.d, w, r) }

// Select opens a chip select window on the driver, waiting for the bus no
// longer than Timeout.
func (b *BusAdapter) Select() (*Selection, error) {
	ctx, cancel := b.context()
	defer cancel()
	return b.d.Select(ctx)
}

// TxSelected is Tx inside sel, which must come from the same driver.
func (b *BusAdapter) TxSelected(sel *Selection, w, r []byte) error { return b.tx(sel, w, r) }

func (b *BusAdapter) tx(x framer, w, r []byte) error {
	if b.d.Config().OnComplete != nil {
		return ErrAsyncDriver
	}
	size := b.d.Config().Width.Bytes()
	n := len(w)
	if len(r) > n {
		n = len(r)
	}
	if n%size != 0 {
		return ErrShortBuffer
	}
	ctx, cancel := b.context()
	defer cancel()

	switch {
	case len(r) == 0:
		return x.Send(ctx, n/size, w)
	case len(w) == 0:
		return x.Receive(ctx, n/size, r)
	}
	if len(w) < n {
		w = append(w[:len(w):len(w)], make([]byte, n-len(w))...)
	}
	if len(r) < n {
		rx := make([]byte, n)
		err := x.Exchange(ctx, n/size, w, rx)
		copy(r, rx)
		return err
	}
	return x.Exchange(ctx, n/size, w, r)
}

// Transfer clocks a single byte out and returns the byte clocked in.
func (b *BusAdapter) Transfer(v byte) (byte, error) {
	var rx [4]byte
	tx := [4]byte{v}
	size := b.d.Config().Width.Bytes()
	if err := b.Tx(tx[:size], rx[:size]); err != nil {
		return 0, err
	}
	return rx[0], nil
}
