package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"gopal/bridge"
)

type operation struct {
	name string
	data []byte
	n    int
	do   func(ctx context.Context, c *bridge.Client, bus string, p *printer) error
}

func parseOp(args []string) (*operation, error) {
	op := &operation{name: args[0]}
	want := 0
	switch op.name {
	case "buses", "state", "trace":
	case "exchange", "send", "receive", "ignore", "poll":
		want = 1
	default:
		return nil, fmt.Errorf("unknown operation %q", op.name)
	}
	if len(args)-1 != want {
		return nil, fmt.Errorf("%s takes %d argument(s), got %d", op.name, want, len(args)-1)
	}

	var err error
	switch op.name {
	case "buses":
		op.do = func(ctx context.Context, c *bridge.Client, _ string, p *printer) error {
			names, err := c.Buses(ctx)
			if err != nil {
				return err
			}
			p.list(names)
			return nil
		}
	case "exchange":
		if op.data, err = parseHex(args[1]); err != nil {
			return nil, err
		}
		op.do = func(ctx context.Context, c *bridge.Client, bus string, p *printer) error {
			rx, err := c.Exchange(ctx, bus, op.data)
			if err != nil {
				return err
			}
			p.bytes("tx", op.data)
			p.bytes("rx", rx)
			return nil
		}
	case "send":
		if op.data, err = parseHex(args[1]); err != nil {
			return nil, err
		}
		op.do = func(ctx context.Context, c *bridge.Client, bus string, p *printer) error {
			if err := c.Send(ctx, bus, op.data); err != nil {
				return err
			}
			p.bytes("tx", op.data)
			return nil
		}
	case "receive":
		if op.n, err = parseCount(args[1]); err != nil {
			return nil, err
		}
		op.do = func(ctx context.Context, c *bridge.Client, bus string, p *printer) error {
			rx, err := c.Receive(ctx, bus, op.n)
			if err != nil {
				return err
			}
			p.bytes("rx", rx)
			return nil
		}
	case "ignore":
		if op.n, err = parseCount(args[1]); err != nil {
			return nil, err
		}
		op.do = func(ctx context.Context, c *bridge.Client, bus string, p *printer) error {
			if err := c.Ignore(ctx, bus, op.n); err != nil {
				return err
			}
			p.ok(fmt.Sprintf("clocked %d frame(s)", op.n))
			return nil
		}
	case "poll":
		v, err := strconv.ParseUint(args[1], 0, 32)
		if err != nil {
			return nil, fmt.Errorf("bad frame %q: %w", args[1], err)
		}
		op.do = func(ctx context.Context, c *bridge.Client, bus string, p *printer) error {
			rx, err := c.Poll(ctx, bus, uint32(v))
			if err != nil {
				return err
			}
			p.frame(uint32(v), rx)
			return nil
		}
	case "state":
		op.do = func(ctx context.Context, c *bridge.Client, bus string, p *printer) error {
			st, err := c.State(ctx, bus)
			if err != nil {
				return err
			}
			p.state(bus, st)
			return nil
		}
	case "trace":
		op.do = func(ctx context.Context, c *bridge.Client, _ string, p *printer) error {
			evts, err := c.Trace(ctx)
			if err != nil {
				return err
			}
			p.events(evts)
			return nil
		}
	}
	return op, nil
}

// parseHex accepts "8000", "80,00", "80:00" and "0x80,0x0".
func parseHex(s string) ([]byte, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ':' })
	if len(fields) == 1 {
		f := strings.TrimPrefix(strings.ToLower(fields[0]), "0x")
		if len(f)%2 == 1 {
			f = "0" + f
		}
		b, err := hex.DecodeString(f)
		if err != nil {
			return nil, fmt.Errorf("bad hex %q: %w", s, err)
		}
		return b, nil
	}
	out := make([]byte, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(f), "0x"), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("bad byte %q: %w", f, err)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad count %q", s)
	}
	return n, nil
}
