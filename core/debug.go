package core

import "sync/atomic"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceEvent captures a driver or registry event for post-mortem analysis
type TraceEvent struct {
	Seq    uint32 // Monotonic sequence number
	Type   uint8  // Event type code
	Unit   uint8  // IRQ number or driver id
	Value1 uint32 // Context-dependent value
	Value2 uint32 // Context-dependent value
}

// Event type codes
const (
	EvtIRQInstall  = 1 // handler installed
	EvtIRQRemove   = 2 // handler removed
	EvtIRQSpurious = 3 // dispatch with no handler
	EvtSPIStart    = 4 // driver started
	EvtSPIStop     = 5 // driver stopped
	EvtXferBegin   = 6 // buffered transfer entered ACTIVE
	EvtXferEnd     = 7 // buffered transfer completed
	EvtFault       = 8 // fatal error path taken
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln atomic.Pointer[DebugWriter]

	// debugEnabled controls whether DebugPrintln output is active
	debugEnabled atomic.Bool

	eventRing     [EventRingSize]TraceEvent
	eventRingHead uint32
	eventSeq      uint32
	eventRingLock atomic.Bool
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		debugPrintln.Store(nil)
		return
	}
	debugPrintln.Store(&writer)
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled.Load()
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if !debugEnabled.Load() {
		return
	}
	if w := debugPrintln.Load(); w != nil {
		(*w)(msg)
	}
}

func lockEventRing() irqState {
	state := disableInterrupts()
	for !eventRingLock.CompareAndSwap(false, true) {
		yield()
	}
	return state
}

func unlockEventRing(state irqState) {
	eventRingLock.Store(false)
	restoreInterrupts(state)
}

// RecordEvent captures an event in the ring buffer. It never blocks on I/O
// and is safe to call from interrupt handlers.
func RecordEvent(eventType, unit uint8, value1, value2 uint32) {
	state := lockEventRing()
	eventSeq++
	eventRing[eventRingHead] = TraceEvent{
		Seq:    eventSeq,
		Type:   eventType,
		Unit:   unit,
		Value1: value1,
		Value2: value2,
	}
	eventRingHead = (eventRingHead + 1) % EventRingSize
	unlockEventRing(state)
}

// Events returns the recorded events, oldest first.
func Events() []TraceEvent {
	state := lockEventRing()
	defer unlockEventRing(state)
	out := make([]TraceEvent, 0, EventRingSize)
	for i := uint32(0); i < EventRingSize; i++ {
		evt := eventRing[(eventRingHead+i)%EventRingSize]
		if evt.Type == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// EventName returns the mnemonic of an event type code.
func EventName(t uint8) string {
	switch t {
	case EvtIRQInstall:
		return "IRQ_INSTALL"
	case EvtIRQRemove:
		return "IRQ_REMOVE"
	case EvtIRQSpurious:
		return "IRQ_SPURIOUS"
	case EvtSPIStart:
		return "SPI_START"
	case EvtSPIStop:
		return "SPI_STOP"
	case EvtXferBegin:
		return "XFER_BEGIN"
	case EvtXferEnd:
		return "XFER_END"
	case EvtFault:
		return "FAULT!"
	}
	return "UNKNOWN"
}

// DumpEventRing writes the ring buffer through the debug writer, whether or
// not debug output is enabled. Called on the fatal path.
func DumpEventRing() {
	w := debugPrintln.Load()
	if w == nil {
		return
	}
	out := *w
	out("[TRACE] === Event Ring Dump ===")
	for _, evt := range Events() {
		out("[TRACE] #" + itoa(int(evt.Seq)) + " " + EventName(evt.Type) +
			" unit=" + itoa(int(evt.Unit)) +
			" v1=" + hex32(evt.Value1) +
			" v2=" + hex32(evt.Value2))
	}
	out("[TRACE] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	state := lockEventRing()
	eventRing = [EventRingSize]TraceEvent{}
	eventRingHead = 0
	unlockEventRing(state)
}
