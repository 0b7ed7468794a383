package core

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gopal/hw"
)

func TestNewEICMasksAllLines(t *testing.T) {
	ctl := &hw.IntController{}
	for b := 0; b < hw.IntBanks; b++ {
		ctl.IEC[b].Set(0xFFFFFFFF)
		ctl.IFS[b].Set(0xFFFFFFFF)
	}
	e := NewEIC(ctl)
	for irq := IRQ(0); irq < NumIRQs; irq++ {
		if e.Enabled(irq) || ctl.Flagged(int(irq)) {
			t.Fatalf("IRQ %d left enabled or flagged", irq)
		}
	}
}

func TestRegisterUnregisterEveryLine(t *testing.T) {
	ctl := &hw.IntController{}
	e := NewEIC(ctl)
	h := func(any) {}

	for irq := IRQ(0); irq < NumIRQs; irq++ {
		e.Register(irq, h, nil)
		if !e.Installed(irq) {
			t.Fatalf("IRQ %d not installed", irq)
		}
		if e.Enabled(irq) {
			t.Fatalf("IRQ %d enabled by Register", irq)
		}
		e.Enable(irq)
		if !ctl.LineEnabled(int(irq)) {
			t.Fatalf("IRQ %d not enabled at the controller", irq)
		}

		e.Unregister(irq)
		if e.Installed(irq) {
			t.Errorf("IRQ %d still installed after Unregister", irq)
		}
		if ctl.LineEnabled(int(irq)) {
			t.Errorf("IRQ %d still enabled after Unregister", irq)
		}

		e.Register(irq, h, nil)
		if !e.Installed(irq) {
			t.Errorf("IRQ %d could not be registered again", irq)
		}
	}
}

func TestRegisterKeepsEnablement(t *testing.T) {
	e := NewEIC(&hw.IntController{})
	e.Enable(IRQUART1RX)
	e.Register(IRQUART1RX, func(any) {}, nil)
	if !e.Enabled(IRQUART1RX) {
		t.Error("Register must not change the enable state")
	}
}

func TestRegisterInstalledKeepsHandler(t *testing.T) {
	e := NewEIC(&hw.IntController{})
	var got []string
	e.Register(IRQCoreTimer, func(data any) { got = append(got, data.(string)) }, "first")

	expectFault(t, ErrIRQInstalled, func() {
		e.Register(IRQCoreTimer, func(data any) { got = append(got, "second") }, "second")
	})

	e.Dispatch(IRQCoreTimer)
	if len(got) != 1 || got[0] != "first" {
		t.Errorf("Expected the original handler with its data, got %q", got)
	}
}

func TestEICRangeAndNilHandler(t *testing.T) {
	e := NewEIC(&hw.IntController{})
	for _, irq := range []IRQ{-1, NumIRQs, 96, 1000} {
		expectFault(t, ErrIRQRange, func() { e.Register(irq, func(any) {}, nil) })
		expectFault(t, ErrIRQRange, func() { e.Unregister(irq) })
		expectFault(t, ErrIRQRange, func() { e.Enable(irq) })
		expectFault(t, ErrIRQRange, func() { e.Disable(irq) })
		if e.Installed(irq) || e.Enabled(irq) {
			t.Errorf("IRQ %d reported installed or enabled", irq)
		}
		e.Dispatch(irq) // ignored
	}
	expectFault(t, ErrNilHandler, func() { e.Register(5, nil, nil) })
	if e.Installed(5) {
		t.Error("Nil handler was installed")
	}
}

func TestDispatchEmptySlot(t *testing.T) {
	ctl := &hw.IntController{}
	e := NewEIC(ctl)
	ctl.Raise(12)
	e.Dispatch(12)

	if ctl.Flagged(12) {
		t.Error("Dispatch must acknowledge the line")
	}
	if n, spurious := e.Stats(12); n != 1 || spurious != 1 {
		t.Errorf("Expected 1 spurious dispatch, got %d/%d", n, spurious)
	}
}

func TestUnregisterEmptySlotDisablesLine(t *testing.T) {
	ctl := &hw.IntController{}
	e := NewEIC(ctl)
	e.Enable(40)
	e.Unregister(40)
	if ctl.LineEnabled(40) {
		t.Error("Unregister should mask the line even with no handler")
	}
}

func TestServiceDispatchOrder(t *testing.T) {
	ctl := &hw.IntController{}
	e := NewEIC(ctl)
	var order []IRQ
	for _, irq := range []IRQ{70, 3, 40, 31} {
		e.Register(irq, func(data any) { order = append(order, data.(IRQ)) }, irq)
		e.Enable(irq)
		ctl.Raise(int(irq))
	}
	e.Register(10, func(any) { t.Error("Masked line was dispatched") }, nil)
	ctl.Raise(10)

	e.Service()

	want := []IRQ{3, 31, 40, 70}
	if len(order) != len(want) {
		t.Fatalf("Expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, order)
			break
		}
	}
	if !ctl.Flagged(10) {
		t.Error("Masked line should stay flagged")
	}
	for _, irq := range want {
		if ctl.Flagged(int(irq)) {
			t.Errorf("IRQ %d still flagged after Service", irq)
		}
	}
}

func TestServiceAcksUnimplementedLines(t *testing.T) {
	ctl := &hw.IntController{}
	e := NewEIC(ctl)
	ctl.IEC[2].SetBits(1 << 20)
	ctl.IFS[2].SetBits(1 << 20) // line 84, beyond NumIRQs
	e.Service()
	if ctl.Pending(2) != 0 {
		t.Error("Unimplemented line left pending")
	}
}

func TestUnregisterWaitsForRunningHandler(t *testing.T) {
	e := NewEIC(&hw.IntController{})
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	e.Register(20, func(any) {
		calls.Add(1)
		close(entered)
		<-release
	}, nil)

	go e.Dispatch(20)
	<-entered

	removed := make(chan struct{})
	go func() {
		e.Unregister(20)
		close(removed)
	}()

	select {
	case <-removed:
		t.Fatal("Unregister returned while the handler was running")
	case <-time.After(20 * time.Millisecond):
	}
	if e.Installed(20) {
		t.Error("Slot should already be empty while waiting")
	}

	close(release)
	select {
	case <-removed:
	case <-time.After(time.Second):
		t.Fatal("Unregister did not return after the handler finished")
	}

	e.Dispatch(20)
	if calls.Load() != 1 {
		t.Errorf("Removed handler ran again: %d calls", calls.Load())
	}
}

func TestInstallRemoveDuringDispatch(t *testing.T) {
	e := NewEIC(&hw.IntController{})
	const irq = 7
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				e.Dispatch(irq)
			}
		}
	}()

	var mismatches atomic.Int32
	for i := 0; i < 500; i++ {
		want := i
		e.Register(irq, func(data any) {
			if data.(int) != want {
				mismatches.Add(1)
			}
		}, i)
		e.Unregister(irq)
	}
	close(stop)
	wg.Wait()

	if mismatches.Load() != 0 {
		t.Errorf("%d dispatches saw a handler with another handler's data", mismatches.Load())
	}
}
