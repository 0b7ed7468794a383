package core

import "testing"

func captureDebug(t *testing.T, enabled bool) *[]string {
	t.Helper()
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	SetDebugEnabled(enabled)
	t.Cleanup(func() {
		SetDebugWriter(nil)
		SetDebugEnabled(false)
	})
	return &lines
}

func TestDebugPrintlnGated(t *testing.T) {
	lines := captureDebug(t, false)
	DebugPrintln("hidden")
	if len(*lines) != 0 {
		t.Errorf("Expected no output while disabled, got %q", *lines)
	}
	SetDebugEnabled(true)
	DebugPrintln("shown")
	if len(*lines) != 1 || (*lines)[0] != "shown" {
		t.Errorf("Expected one line, got %q", *lines)
	}
}

func TestEventRingWraps(t *testing.T) {
	ClearEventRing()
	for i := 0; i < EventRingSize+5; i++ {
		RecordEvent(EvtXferBegin, 1, uint32(i), 0)
	}
	evts := Events()
	if len(evts) != EventRingSize {
		t.Fatalf("Expected %d events, got %d", EventRingSize, len(evts))
	}
	if evts[0].Value1 != 5 || evts[len(evts)-1].Value1 != EventRingSize+4 {
		t.Errorf("Expected oldest 5 and newest %d, got %d and %d",
			EventRingSize+4, evts[0].Value1, evts[len(evts)-1].Value1)
	}
	for i := 1; i < len(evts); i++ {
		if evts[i].Seq != evts[i-1].Seq+1 {
			t.Fatalf("Sequence not monotonic at %d", i)
		}
	}

	ClearEventRing()
	if len(Events()) != 0 {
		t.Error("Ring not cleared")
	}
}

func TestDumpEventRing(t *testing.T) {
	lines := captureDebug(t, false)
	ClearEventRing()
	RecordEvent(EvtIRQInstall, 24, 0, 0)
	DumpEventRing()

	if len(*lines) != 3 {
		t.Fatalf("Expected header, one event and footer, got %q", *lines)
	}
	want := " IRQ_INSTALL unit=24 v1=0x00000000 v2=0x00000000"
	got := (*lines)[1]
	if len(got) < len(want) || got[len(got)-len(want):] != want {
		t.Errorf("Unexpected event line %q", got)
	}
}

func TestStrutil(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"}, {7, "7"}, {-42, "-42"}, {1234567, "1234567"},
	}
	for _, tt := range tests {
		if got := itoa(tt.n); got != tt.want {
			t.Errorf("itoa(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
	if got := hex32(0xDEADBEEF); got != "0xdeadbeef" {
		t.Errorf("hex32 = %q", got)
	}
	if got := hex32(0x1F); got != "0x0000001f" {
		t.Errorf("hex32 = %q", got)
	}
}
