package bridge

import (
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"time"

	"gopal/core"
	"gopal/protocol"
)

// DefaultTimeout bounds one command on the server side.
const DefaultTimeout = time.Second

// identifyChunk is the dictionary slice returned by one identify call.
const identifyChunk = 200

// traceMax is how many of the newest events fit in one trace reply.
const traceMax = (protocol.PayloadMax - 8) / 25

// Server runs bridge commands against a set of named SPI drivers.
type Server struct {
	reg   *core.CommandRegistry
	buses map[string]*core.SPIDriver
	names []string

	// Timeout bounds each command. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewServer returns a server for buses, keyed by the names clients use.
// The drivers must be started without a completion callback.
func NewServer(buses map[string]*core.SPIDriver) *Server {
	s := &Server{
		reg:   core.NewCommandRegistry(),
		buses: buses,
	}
	for name := range buses {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)

	// identify must stay ID 0: clients read the dictionary through it.
	s.reg.Register("identify", "offset=%u count=%c", s.handleIdentify)
	s.reg.Register("spi_buses", "", s.handleBuses)
	s.reg.Register("spi_exchange", "bus=%s data=%*s", s.handleExchange)
	s.reg.Register("spi_send", "bus=%s data=%*s", s.handleSend)
	s.reg.Register("spi_receive", "bus=%s n=%u", s.handleReceive)
	s.reg.Register("spi_ignore", "bus=%s n=%u", s.handleIgnore)
	s.reg.Register("spi_poll", "bus=%s frame=%u", s.handlePoll)
	s.reg.Register("spi_state", "bus=%s", s.handleState)
	s.reg.Register("trace", "", s.handleTrace)
	return s
}

// Registry returns the server's command registry.
func (s *Server) Registry() *core.CommandRegistry { return s.reg }

// Serve answers requests read from rw until ctx is done or rw fails.
// Frames with the wrong direction are ignored.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriter) error {
	fr := protocol.NewFrameReader(rw)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		seq, payload, err := fr.Next()
		if errors.Is(err, protocol.ErrNoData) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if seq&^protocol.SeqMask != protocol.SeqToDevice {
			core.DebugPrintln("[BRIDGE] dropped frame with seq " + strconv.Itoa(int(seq)))
			continue
		}
		reply := s.Handle(ctx, payload)
		frame, err := protocol.EncodeFrame(seq&protocol.SeqMask|protocol.SeqToHost, reply)
		if err != nil {
			return err
		}
		if _, err := rw.Write(frame); err != nil {
			return err
		}
	}
}

// Handle runs one request payload and returns the reply payload. A fault
// raised by the driver is reported to the client instead of taking the
// server down.
func (s *Server) Handle(ctx context.Context, payload []byte) (reply []byte) {
	args := payload
	id, err := protocol.DecodeUint(&args)
	if err != nil {
		return errorReply(StatusBadArgs, err)
	}

	defer func() {
		if r := recover(); r != nil {
			fault, ok := r.(*core.Fault)
			if !ok {
				panic(r)
			}
			reply = errorReply(StatusFault, fault)
		}
	}()

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := s.reg.Dispatch(cctx, uint16(id), &args, protocol.AppendUint(nil, uint32(StatusOK)))
	if err != nil {
		return errorReply(statusOf(err), err)
	}
	return out
}

func errorReply(st Status, err error) []byte {
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return protocol.AppendString(protocol.AppendUint(nil, uint32(st)), msg)
}

func (s *Server) bus(args *[]byte) (*core.SPIDriver, error) {
	name, err := protocol.DecodeString(args)
	if err != nil {
		return nil, ErrBadArgs
	}
	d, ok := s.buses[name]
	if !ok {
		return nil, ErrUnknownBus
	}
	return d, nil
}

// transferBus is bus for the buffered transfer commands, which need the
// driver to wake the caller on completion.
func (s *Server) transferBus(args *[]byte) (*core.SPIDriver, error) {
	d, err := s.bus(args)
	if err == nil && d.Config().OnComplete != nil {
		return nil, core.ErrAsyncDriver
	}
	return d, err
}

// frames converts a byte count into whole frames of d.
func frames(d *core.SPIDriver, size int) (int, error) {
	w := d.Config().Width.Bytes()
	if w == 0 || size%w != 0 || size > MaxTransfer {
		return 0, ErrBadArgs
	}
	return size / w, nil
}

func (s *Server) handleIdentify(ctx context.Context, args *[]byte, out []byte) ([]byte, error) {
	offset, err := protocol.DecodeUint(args)
	if err != nil {
		return out, ErrBadArgs
	}
	count, err := protocol.DecodeUint(args)
	if err != nil {
		return out, ErrBadArgs
	}
	dict := s.reg.Dictionary()
	if count > identifyChunk {
		count = identifyChunk
	}
	if offset > uint32(len(dict)) {
		offset = uint32(len(dict))
	}
	end := offset + count
	if end > uint32(len(dict)) {
		end = uint32(len(dict))
	}
	return protocol.AppendString(out, dict[offset:end]), nil
}

func (s *Server) handleBuses(ctx context.Context, args *[]byte, out []byte) ([]byte, error) {
	out = protocol.AppendUint(out, uint32(len(s.names)))
	for _, name := range s.names {
		out = protocol.AppendString(out, name)
	}
	return out, nil
}

func (s *Server) handleExchange(ctx context.Context, args *[]byte, out []byte) ([]byte, error) {
	d, err := s.transferBus(args)
	if err != nil {
		return out, err
	}
	tx, err := protocol.DecodeBytes(args)
	if err != nil {
		return out, ErrBadArgs
	}
	n, err := frames(d, len(tx))
	if err != nil {
		return out, err
	}
	rx := make([]byte, len(tx))
	if err := d.Exchange(ctx, n, tx, rx); err != nil {
		return out, err
	}
	return protocol.AppendBytes(out, rx), nil
}

func (s *Server) handleSend(ctx context.Context, args *[]byte, out []byte) ([]byte, error) {
	d, err := s.transferBus(args)
	if err != nil {
		return out, err
	}
	tx, err := protocol.DecodeBytes(args)
	if err != nil {
		return out, ErrBadArgs
	}
	n, err := frames(d, len(tx))
	if err != nil {
		return out, err
	}
	return out, d.Send(ctx, n, tx)
}

func (s *Server) handleReceive(ctx context.Context, args *[]byte, out []byte) ([]byte, error) {
	d, err := s.transferBus(args)
	if err != nil {
		return out, err
	}
	n, err := protocol.DecodeUint(args)
	if err != nil || int(n)*d.Config().Width.Bytes() > MaxTransfer {
		return out, ErrBadArgs
	}
	rx := make([]byte, int(n)*d.Config().Width.Bytes())
	if err := d.Receive(ctx, int(n), rx); err != nil {
		return out, err
	}
	return protocol.AppendBytes(out, rx), nil
}

func (s *Server) handleIgnore(ctx context.Context, args *[]byte, out []byte) ([]byte, error) {
	d, err := s.transferBus(args)
	if err != nil {
		return out, err
	}
	n, err := protocol.DecodeUint(args)
	if err != nil || n > 1<<16 {
		return out, ErrBadArgs
	}
	return out, d.Ignore(ctx, int(n))
}

func (s *Server) handlePoll(ctx context.Context, args *[]byte, out []byte) ([]byte, error) {
	d, err := s.bus(args)
	if err != nil {
		return out, err
	}
	frame, err := protocol.DecodeUint(args)
	if err != nil {
		return out, ErrBadArgs
	}
	return protocol.AppendUint(out, d.PollExchange(frame)), nil
}

func (s *Server) handleState(ctx context.Context, args *[]byte, out []byte) ([]byte, error) {
	d, err := s.bus(args)
	if err != nil {
		return out, err
	}
	held := uint32(0)
	if d.BusHeld() {
		held = 1
	}
	out = protocol.AppendUint(out, uint32(d.State()))
	out = protocol.AppendUint(out, held)
	return protocol.AppendUint(out, uint32(d.Config().Width)), nil
}

func (s *Server) handleTrace(ctx context.Context, args *[]byte, out []byte) ([]byte, error) {
	evts := core.Events()
	if len(evts) > traceMax {
		evts = evts[len(evts)-traceMax:]
	}
	out = protocol.AppendUint(out, uint32(len(evts)))
	for _, e := range evts {
		out = protocol.AppendUint(out, e.Seq)
		out = protocol.AppendUint(out, uint32(e.Type))
		out = protocol.AppendUint(out, uint32(e.Unit))
		out = protocol.AppendUint(out, e.Value1)
		out = protocol.AppendUint(out, e.Value2)
	}
	return out, nil
}
