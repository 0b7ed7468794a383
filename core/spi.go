package core

import (
	"context"
	"sync/atomic"

	"gopal/hw"
)

// SPIState is the lifecycle state of an SPI driver.
type SPIState uint32

const (
	SPIUninit SPIState = iota
	SPIStop
	SPIReady
	SPIActive
)

func (s SPIState) String() string {
	switch s {
	case SPIUninit:
		return "uninit"
	case SPIStop:
		return "stop"
	case SPIReady:
		return "ready"
	case SPIActive:
		return "active"
	}
	return "state(" + itoa(int(s)) + ")"
}

// transfer is the in-flight descriptor. It belongs to the bus holder until
// the first frame is written, then to the completion path.
type transfer struct {
	n, pos int
	width  int // bytes per frame
	fill   uint32
	tx, rx []byte
	held   bool // runs inside a Selection, which owns the bus and the pad
}

// next returns the frame to clock out at the current position. Frames are
// packed little-endian in the buffers.
func (x *transfer) next() uint32 {
	if x.tx == nil {
		return x.fill
	}
	off := x.pos * x.width
	var v uint32
	for i := 0; i < x.width; i++ {
		v |= uint32(x.tx[off+i]) << (8 * uint(i))
	}
	return v
}

// store keeps the frame received at the current position and advances.
func (x *transfer) store(v uint32) {
	if x.rx != nil {
		off := x.pos * x.width
		for i := 0; i < x.width; i++ {
			x.rx[off+i] = byte(v >> (8 * uint(i)))
		}
	}
	x.pos++
}

var spiUnits atomic.Uint32

// SPIDriver owns one hardware SPI unit. Buffered transfers on a driver are
// serialized by its bus semaphore; completion is reported either through
// SPIConfig.OnComplete or by waking the caller.
type SPIDriver struct {
	name string
	unit uint8
	port SPIPort
	eic  *EIC

	state    atomic.Uint32
	selected atomic.Bool // a Selection is open
	closing  atomic.Bool // its Unselect is waiting for the transfer to end
	cfg      SPIConfig
	xfer     transfer

	bus    *Semaphore
	waiter *Waiter
}

// NewSPIDriver returns a stopped driver for port. eic may be nil when the
// driver will only be started in polled mode.
func NewSPIDriver(name string, port SPIPort, eic *EIC) *SPIDriver {
	d := &SPIDriver{
		name:   name,
		unit:   uint8(spiUnits.Add(1)),
		port:   port,
		eic:    eic,
		bus:    NewSemaphore(),
		waiter: newWaiter(),
	}
	d.state.Store(uint32(SPIStop))
	return d
}

// Name returns the name given to NewSPIDriver.
func (d *SPIDriver) Name() string { return d.name }

// State returns the current lifecycle state.
func (d *SPIDriver) State() SPIState { return SPIState(d.state.Load()) }

// Config returns the configuration applied by the last Start.
func (d *SPIDriver) Config() SPIConfig { return d.cfg }

// BusHeld reports whether a transfer, a Selection or a Stop owns the bus.
func (d *SPIDriver) BusHeld() bool { return d.bus != nil && d.bus.Held() }

func (d *SPIDriver) setState(s SPIState) { d.state.Store(uint32(s)) }

func (d *SPIDriver) require(op string, want SPIState) {
	if st := d.State(); st != want {
		fatal(op+" "+d.name+" in "+st.String(), ErrInvalidState)
	}
}

// Start programs the unit and moves the driver from STOP to READY.
func (d *SPIDriver) Start(cfg SPIConfig) {
	d.require("spi start", SPIStop)
	if err := cfg.validate(); err != nil {
		fatal("spi start "+d.name, err)
	}
	if cfg.Transfer == TransferIRQ {
		if d.eic == nil {
			fatal("spi start "+d.name+": irq transfer without eic", ErrInvalidConfig)
		}
		// An occupied line is fatal here, before the unit or the line is touched.
		d.eic.Register(cfg.RxIRQ, serveSPI, d)
		d.eic.Disable(cfg.RxIRQ)
		d.eic.ClearPending(cfg.RxIRQ)
	}
	d.cfg = cfg

	d.port.SetControl(0)
	d.port.SetBaud(cfg.baud(d.port.BusClock()))
	d.port.SetControl(cfg.control())

	if cs := cfg.CS; cs.Port != nil {
		// Latch the idle level first so the pad comes up deasserted.
		WritePad(cs.Port, cs.Pad, !cs.ActiveHigh)
		SetPadMode(cs.Port, cs.Pad, PadModeOutput)
	}
	d.selected.Store(false)
	d.closing.Store(false)
	d.setState(SPIReady)
	RecordEvent(EvtSPIStart, d.unit, d.port.Control(), uint32(cfg.ClockHz))
	DebugPrintln("[SPI] " + d.name + " started con=" + hex32(d.port.Control()))
}

// Stop turns the unit off and moves the driver from READY to STOP. Stopping
// an ACTIVE driver, or one with an open Selection, is fatal.
func (d *SPIDriver) Stop() {
	d.require("spi stop", SPIReady)
	if d.selected.Load() && !d.closing.Load() {
		fatal("spi stop "+d.name+" with chip select asserted", ErrInvalidState)
	}

	// A completion may still be releasing the bus after its notification.
	_ = d.bus.Wait(context.Background())

	d.selected.Store(false)
	d.closing.Store(false)
	if d.cfg.Transfer == TransferIRQ {
		d.eic.Unregister(d.cfg.RxIRQ)
		d.eic.ClearPending(d.cfg.RxIRQ)
	}
	d.port.SetControl(0)
	d.xfer = transfer{}
	d.setState(SPIStop)
	d.bus.Signal()
	RecordEvent(EvtSPIStop, d.unit, 0, 0)
	DebugPrintln("[SPI] " + d.name + " stopped")
}

// Selection is a chip select window. It owns the bus from Select until
// Unselect, so transfers of other callers wait for the window to close.
// A Selection is used by one goroutine at a time.
type Selection struct {
	d    *SPIDriver
	open bool
}

// Select waits for the bus like a transfer does, then asserts chip select.
// Transfers made through the returned Selection leave the pad alone. If
// ctx expires first the error matches ErrTimeout.
func (d *SPIDriver) Select(ctx context.Context) (*Selection, error) {
	const op = "spi select"
	if st := d.State(); st != SPIReady && st != SPIActive {
		fatal(op+" "+d.name+" in "+st.String(), ErrInvalidState)
	}
	if err := d.bus.Wait(ctx); err != nil {
		return nil, &waitError{op: op, err: err}
	}
	if st := d.State(); st != SPIReady {
		d.bus.Signal()
		fatal(op+" "+d.name+" in "+st.String(), ErrInvalidState)
	}
	d.closing.Store(false)
	d.selected.Store(true)
	d.assert()
	return &Selection{d: d, open: true}, nil
}

// Unselect deasserts chip select and releases the bus. When a transfer of
// the window is still running, after a callback start or an expired wait,
// both happen when it completes.
func (s *Selection) Unselect() {
	s.check("spi unselect")
	s.open = false
	s.d.closing.Store(true)
	if s.d.State() == SPIReady {
		s.d.closeSelection()
	}
}

// closeSelection ends a window whose Unselect has been called. Unselect and
// the completion path may both get here; only one of them proceeds.
func (d *SPIDriver) closeSelection() {
	if !d.closing.CompareAndSwap(true, false) {
		return
	}
	d.deassert()
	d.selected.Store(false)
	d.bus.Signal()
}

func (s *Selection) check(op string) {
	if !s.open {
		fatal(op+" "+s.d.name+" on a closed selection", ErrInvalidState)
	}
}

// Exchange is SPIDriver.Exchange inside the window.
func (s *Selection) Exchange(ctx context.Context, n int, tx, rx []byte) error {
	const op = "spi exchange"
	s.check(op)
	s.d.checkBuffer(op, n, tx)
	s.d.checkBuffer(op, n, rx)
	return s.d.run(ctx, op, n, tx, rx, true)
}

// Send is SPIDriver.Send inside the window.
func (s *Selection) Send(ctx context.Context, n int, tx []byte) error {
	const op = "spi send"
	s.check(op)
	s.d.checkBuffer(op, n, tx)
	return s.d.run(ctx, op, n, tx, nil, true)
}

// Receive is SPIDriver.Receive inside the window.
func (s *Selection) Receive(ctx context.Context, n int, rx []byte) error {
	const op = "spi receive"
	s.check(op)
	s.d.checkBuffer(op, n, rx)
	return s.d.run(ctx, op, n, nil, rx, true)
}

// Ignore is SPIDriver.Ignore inside the window.
func (s *Selection) Ignore(ctx context.Context, n int) error {
	const op = "spi ignore"
	s.check(op)
	return s.d.run(ctx, op, n, nil, nil, true)
}

func (d *SPIDriver) assert() {
	if cs := d.cfg.CS; cs.Port != nil {
		WritePad(cs.Port, cs.Pad, cs.ActiveHigh)
	}
}

func (d *SPIDriver) deassert() {
	if cs := d.cfg.CS; cs.Port != nil {
		WritePad(cs.Port, cs.Pad, !cs.ActiveHigh)
	}
}

// Exchange clocks n frames out of tx while storing the n frames clocked in
// into rx. Chip select is asserted for the duration of the transfer.
//
// With no completion callback the call returns once the transfer is done.
// With a callback, an IRQ transfer returns as soon as it is started and the
// buffers must stay untouched until the callback runs. If ctx expires first
// the error matches ErrTimeout; the transfer keeps the bus and still
// completes.
func (d *SPIDriver) Exchange(ctx context.Context, n int, tx, rx []byte) error {
	const op = "spi exchange"
	d.checkBuffer(op, n, tx)
	d.checkBuffer(op, n, rx)
	return d.run(ctx, op, n, tx, rx, false)
}

// Send clocks n frames out of tx and discards what comes back.
func (d *SPIDriver) Send(ctx context.Context, n int, tx []byte) error {
	const op = "spi send"
	d.checkBuffer(op, n, tx)
	return d.run(ctx, op, n, tx, nil, false)
}

// Receive clocks the fill pattern n times and stores the frames clocked in.
func (d *SPIDriver) Receive(ctx context.Context, n int, rx []byte) error {
	const op = "spi receive"
	d.checkBuffer(op, n, rx)
	return d.run(ctx, op, n, nil, rx, false)
}

// Ignore clocks the fill pattern n times and keeps nothing.
func (d *SPIDriver) Ignore(ctx context.Context, n int) error {
	return d.run(ctx, "spi ignore", n, nil, nil, false)
}

func (d *SPIDriver) checkBuffer(op string, n int, buf []byte) {
	st := d.State()
	if st != SPIReady && st != SPIActive {
		fatal(op+" "+d.name+" in "+st.String(), ErrInvalidState)
	}
	if n < 0 || len(buf) < n*d.cfg.Width.Bytes() {
		fatal(op+" "+d.name+" n="+itoa(n), ErrShortBuffer)
	}
}

// run performs a buffered transfer. held means the caller's Selection
// already owns the bus.
func (d *SPIDriver) run(ctx context.Context, op string, n int, tx, rx []byte, held bool) error {
	if st := d.State(); st != SPIReady && (held || st != SPIActive) {
		fatal(op+" "+d.name+" in "+st.String(), ErrInvalidState)
	}
	if n < 0 {
		fatal(op+" "+d.name+" n="+itoa(n), ErrShortBuffer)
	}
	if !held {
		if err := d.bus.Wait(ctx); err != nil {
			return &waitError{op: op, err: err}
		}
		if st := d.State(); st != SPIReady {
			d.bus.Signal()
			fatal(op+" "+d.name+" in "+st.String(), ErrInvalidState)
		}
	}

	d.xfer = transfer{
		n:      n,
		width:  d.cfg.Width.Bytes(),
		fill:   d.cfg.Width.fill(),
		tx:     tx,
		rx:     rx,
		held:   held,
	}
	d.setState(SPIActive)
	RecordEvent(EvtXferBegin, d.unit, uint32(n), 0)
	if !held {
		d.assert()
	}
	if d.port.Status()&hw.SPISTAT_SPIRBF != 0 {
		d.port.ReadBuf()
	}

	if n == 0 {
		d.complete(false)
		return nil
	}
	if d.cfg.Transfer == TransferPolled {
		for d.xfer.pos < d.xfer.n {
			d.xfer.store(d.pollFrame(op, d.xfer.next()))
		}
		d.complete(false)
		return nil
	}

	irq := d.cfg.RxIRQ
	wait := d.cfg.OnComplete == nil
	if wait {
		d.waiter.prepare()
	}
	d.eic.ClearPending(irq)
	d.eic.Enable(irq)
	d.port.WriteBuf(d.xfer.next())
	// The descriptor now belongs to the interrupt handler.
	if !wait {
		return nil
	}
	if err := d.waiter.Suspend(ctx); err != nil {
		DebugPrintln("[SPI] " + d.name + " " + op + " wait expired, transfer still in flight")
		return &waitError{op: op, err: err}
	}
	return nil
}

// PollExchange clocks one frame and busy-waits for the reply. It bypasses
// the bus semaphore and the interrupt path and must not overlap a buffered
// transfer.
func (d *SPIDriver) PollExchange(frame uint32) uint32 {
	const op = "spi poll exchange"
	d.require(op, SPIReady)
	return d.pollFrame(op, frame&d.cfg.Width.fill())
}

func (d *SPIDriver) pollFrame(op string, frame uint32) uint32 {
	d.port.WriteBuf(frame)
	limit := d.cfg.pollLimit()
	for i := 0; d.port.Status()&hw.SPISTAT_SPIRBF == 0; i++ {
		if i >= limit {
			fatal(op+" "+d.name, ErrHardwareTimeout)
		}
	}
	return d.port.ReadBuf()
}

func serveSPI(data any) {
	data.(*SPIDriver).serve()
}

// serve is the receive interrupt handler of an IRQ-mode driver.
func (d *SPIDriver) serve() {
	if d.State() != SPIActive {
		d.port.ReadBuf()
		return
	}
	x := &d.xfer
	x.store(d.port.ReadBuf())
	if x.pos < x.n {
		d.port.WriteBuf(x.next())
		return
	}
	d.eic.Disable(d.cfg.RxIRQ)
	d.complete(true)
}

// complete ends the transfer: chip select off, descriptor cleared, READY,
// then the notification, and the bus is released last. Inside a Selection
// the pad and the bus stay with the window unless its Unselect came first.
func (d *SPIDriver) complete(fromISR bool) {
	n, held := d.xfer.n, d.xfer.held
	if !held {
		d.deassert()
	}
	d.xfer = transfer{}
	d.setState(SPIReady)
	RecordEvent(EvtXferEnd, d.unit, uint32(n), 0)

	if cb := d.cfg.OnComplete; cb != nil {
		cb(d)
	} else if fromISR {
		d.waiter.Resume()
	}
	if held {
		d.closeSelection()
		return
	}
	d.bus.Signal()
}
