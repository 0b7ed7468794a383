package bridge

import (
	"context"
	"errors"
	"io"
	"sync"

	"gopal/core"
	"gopal/protocol"
)

// BusState is the reply of State.
type BusState struct {
	State   core.SPIState
	BusHeld bool
	Width   core.DataWidth
}

// Client issues bridge commands over a byte stream. Calls are serialized.
type Client struct {
	mu  sync.Mutex
	w   io.Writer
	fr  *protocol.FrameReader
	seq uint8
	ids map[string]uint16
}

// Connect reads the command dictionary from the server at the other end
// of rw and returns a client ready for use.
func Connect(ctx context.Context, rw io.ReadWriter) (*Client, error) {
	c := &Client{
		w:   rw,
		fr:  protocol.NewFrameReader(rw),
		ids: map[string]uint16{"identify": 0},
	}
	var dict []byte
	for {
		args := protocol.AppendUint(nil, uint32(len(dict)))
		args = protocol.AppendUint(args, identifyChunk)
		reply, err := c.call(ctx, "identify", args)
		if err != nil {
			return nil, err
		}
		chunk, err := protocol.DecodeBytes(&reply)
		if err != nil {
			return nil, ErrWrongBridge
		}
		dict = append(dict, chunk...)
		if len(chunk) < identifyChunk {
			break
		}
	}
	c.ids = core.ParseDictionary(string(dict))
	if _, ok := c.ids["spi_exchange"]; !ok {
		return nil, ErrWrongBridge
	}
	return c, nil
}

// Commands returns the names the server offers.
func (c *Client) Commands() []string {
	names := make([]string, 0, len(c.ids))
	for name := range c.ids {
		names = append(names, name)
	}
	return names
}

// call sends one request and waits for its reply. The reply is returned
// with the status already consumed.
func (c *Client) call(ctx context.Context, name string, args []byte) ([]byte, error) {
	id, ok := c.ids[name]
	if !ok {
		return nil, &StatusError{Command: name, Status: StatusUnknownCommand}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq = (c.seq + 1) & protocol.SeqMask
	payload := append(protocol.AppendUint(nil, uint32(id)), args...)
	frame, err := protocol.EncodeFrame(protocol.SeqToDevice|c.seq, payload)
	if err != nil {
		return nil, err
	}
	if _, err := c.w.Write(frame); err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seq, reply, err := c.fr.Next()
		if errors.Is(err, protocol.ErrNoData) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if seq != protocol.SeqToHost|c.seq {
			continue // stale reply to an abandoned request
		}
		st, err := protocol.DecodeUint(&reply)
		if err != nil {
			return nil, ErrWrongBridge
		}
		if Status(st) != StatusOK {
			msg, _ := protocol.DecodeString(&reply)
			return nil, &StatusError{Command: name, Status: Status(st), Msg: msg}
		}
		return append([]byte(nil), reply...), nil
	}
}

func busArgs(bus string) []byte {
	return protocol.AppendString(nil, bus)
}

// Buses lists the SPI buses the server exposes.
func (c *Client) Buses(ctx context.Context) ([]string, error) {
	reply, err := c.call(ctx, "spi_buses", nil)
	if err != nil {
		return nil, err
	}
	n, err := protocol.DecodeUint(&reply)
	if err != nil {
		return nil, ErrWrongBridge
	}
	names := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := protocol.DecodeString(&reply)
		if err != nil {
			return nil, ErrWrongBridge
		}
		names = append(names, name)
	}
	return names, nil
}

// Exchange clocks tx out on bus and returns what was clocked in.
func (c *Client) Exchange(ctx context.Context, bus string, tx []byte) ([]byte, error) {
	if len(tx) > MaxTransfer {
		return nil, ErrTooLong
	}
	reply, err := c.call(ctx, "spi_exchange", protocol.AppendBytes(busArgs(bus), tx))
	if err != nil {
		return nil, err
	}
	return protocol.DecodeBytes(&reply)
}

// Send clocks tx out on bus.
func (c *Client) Send(ctx context.Context, bus string, tx []byte) error {
	if len(tx) > MaxTransfer {
		return ErrTooLong
	}
	_, err := c.call(ctx, "spi_send", protocol.AppendBytes(busArgs(bus), tx))
	return err
}

// Receive clocks n fill frames on bus and returns what was clocked in.
func (c *Client) Receive(ctx context.Context, bus string, n int) ([]byte, error) {
	reply, err := c.call(ctx, "spi_receive", protocol.AppendUint(busArgs(bus), uint32(n)))
	if err != nil {
		return nil, err
	}
	return protocol.DecodeBytes(&reply)
}

// Ignore clocks n fill frames on bus.
func (c *Client) Ignore(ctx context.Context, bus string, n int) error {
	_, err := c.call(ctx, "spi_ignore", protocol.AppendUint(busArgs(bus), uint32(n)))
	return err
}

// Poll runs a single polled frame exchange on bus.
func (c *Client) Poll(ctx context.Context, bus string, frame uint32) (uint32, error) {
	reply, err := c.call(ctx, "spi_poll", protocol.AppendUint(busArgs(bus), frame))
	if err != nil {
		return 0, err
	}
	return protocol.DecodeUint(&reply)
}

// State reports the driver state of bus.
func (c *Client) State(ctx context.Context, bus string) (BusState, error) {
	reply, err := c.call(ctx, "spi_state", busArgs(bus))
	if err != nil {
		return BusState{}, err
	}
	var v [3]uint32
	for i := range v {
		if v[i], err = protocol.DecodeUint(&reply); err != nil {
			return BusState{}, ErrWrongBridge
		}
	}
	return BusState{State: core.SPIState(v[0]), BusHeld: v[1] != 0, Width: core.DataWidth(v[2])}, nil
}

// Trace fetches the newest events of the device's trace ring.
func (c *Client) Trace(ctx context.Context) ([]core.TraceEvent, error) {
	reply, err := c.call(ctx, "trace", nil)
	if err != nil {
		return nil, err
	}
	n, err := protocol.DecodeUint(&reply)
	if err != nil {
		return nil, ErrWrongBridge
	}
	evts := make([]core.TraceEvent, 0, n)
	for i := uint32(0); i < n; i++ {
		var v [5]uint32
		for j := range v {
			if v[j], err = protocol.DecodeUint(&reply); err != nil {
				return nil, ErrWrongBridge
			}
		}
		evts = append(evts, core.TraceEvent{
			Seq: v[0], Type: uint8(v[1]), Unit: uint8(v[2]), Value1: v[3], Value2: v[4],
		})
	}
	return evts, nil
}
