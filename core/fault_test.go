package core

import (
	"errors"
	"testing"
)

// expectFault runs fn and checks that it takes the fatal path with want.
func expectFault(t *testing.T, want error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		f, ok := r.(*Fault)
		if !ok {
			t.Fatalf("Expected *Fault panic, got %v", r)
		}
		if !errors.Is(f, want) {
			t.Fatalf("Fault %q does not wrap %v", f.Error(), want)
		}
	}()
	fn()
}

func TestFaultRecordsEventAndDumps(t *testing.T) {
	ClearEventRing()
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	t.Cleanup(func() { SetDebugWriter(nil) })

	expectFault(t, ErrInvalidState, func() { fatal("test op", ErrInvalidState) })

	evts := Events()
	if len(evts) == 0 || evts[len(evts)-1].Type != EvtFault {
		t.Fatalf("Expected last event to be a fault, got %+v", evts)
	}
	// Debug output is disabled, so only the ring dump is written.
	if len(lines) < 2 || lines[0] != "[TRACE] === Event Ring Dump ===" {
		t.Errorf("Unexpected dump output: %q", lines)
	}
}

func TestWaitErrorMatchesBoth(t *testing.T) {
	err := error(&waitError{op: "spi exchange", err: errCanceled})
	if !errors.Is(err, ErrTimeout) {
		t.Error("wait error does not match ErrTimeout")
	}
	if !errors.Is(err, errCanceled) {
		t.Error("wait error does not match the context error")
	}
}

var errCanceled = errors.New("canceled")
