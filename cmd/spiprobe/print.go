package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"gopal/bridge"
	"gopal/core"
)

type printer struct {
	w     io.Writer
	label *color.Color
	value *color.Color
	good  *color.Color
	warn  *color.Color
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:     w,
		label: color.New(color.FgCyan),
		value: color.New(color.FgGreen),
		good:  color.New(color.FgGreen, color.Bold),
		warn:  color.New(color.FgYellow),
	}
}

func (p *printer) bytes(label string, b []byte) {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	p.label.Fprintf(p.w, "%s ", label)
	p.value.Fprintf(p.w, "[%s]", strings.Join(parts, " "))
	fmt.Fprintf(p.w, " (%d bytes)\n", len(b))
}

func (p *printer) frame(tx, rx uint32) {
	p.label.Fprint(p.w, "poll ")
	fmt.Fprintf(p.w, "tx=0x%x ", tx)
	p.value.Fprintf(p.w, "rx=0x%x\n", rx)
}

func (p *printer) list(names []string) {
	for _, n := range names {
		p.value.Fprintln(p.w, n)
	}
}

func (p *printer) ok(msg string) {
	p.good.Fprintln(p.w, msg)
}

func (p *printer) state(bus string, st bridge.BusState) {
	p.label.Fprintf(p.w, "%s ", bus)
	c := p.value
	if st.State != core.SPIReady {
		c = p.warn
	}
	c.Fprintf(p.w, "%s", st.State)
	fmt.Fprintf(p.w, " width=%d bus_held=%v\n", st.Width, st.BusHeld)
}

func (p *printer) events(evts []core.TraceEvent) {
	if len(evts) == 0 {
		p.warn.Fprintln(p.w, "trace ring empty")
		return
	}
	for _, e := range evts {
		c := p.value
		if e.Type == core.EvtFault {
			c = p.warn
		}
		fmt.Fprintf(p.w, "[%4d] ", e.Seq)
		c.Fprintf(p.w, "%-14s", core.EventName(e.Type))
		fmt.Fprintf(p.w, " unit=%-3d v1=0x%08x v2=0x%08x\n", e.Unit, e.Value1, e.Value2)
	}
}
