package core

// IOPort is the opaque handle of one GPIO port. Every method touches only
// the pads selected by mask; the register semantics are those of
// SET/CLR/INV shadow writes.
type IOPort interface {
	AnalogSet(mask uint32)
	AnalogClear(mask uint32)
	OpenDrainSet(mask uint32)
	OpenDrainClear(mask uint32)
	DirInput(mask uint32)
	DirOutput(mask uint32)

	LatchSet(mask uint32)
	LatchClear(mask uint32)
	LatchToggle(mask uint32)
	ReadLatch() uint32
	ReadPort() uint32
}

// PadMode is the electrical mode of a pad group. The zero value is not a
// mode.
type PadMode uint8

const (
	PadModeOutput PadMode = iota + 1
	PadModeOutputOpenDrain
	PadModeInput
	PadModeInputAnalog
)

func (m PadMode) String() string {
	switch m {
	case PadModeOutput:
		return "output"
	case PadModeOutputOpenDrain:
		return "output-open-drain"
	case PadModeInput:
		return "input"
	case PadModeInputAnalog:
		return "input-analog"
	}
	return "pad-mode(" + itoa(int(m)) + ")"
}

// SetGroupMode programs the pads of port selected by mask with mode.
//
// The analog-select and open-drain writes always precede the direction
// write: the direction change is the commit point, so a pad never runs in
// its new direction with the old analog or output-stage setting. An
// unknown mode is fatal and leaves the port untouched.
func SetGroupMode(port IOPort, mask uint32, mode PadMode) {
	switch mode {
	case PadModeOutputOpenDrain:
		port.OpenDrainSet(mask)
		port.AnalogClear(mask)
		port.DirOutput(mask)
	case PadModeOutput:
		port.OpenDrainClear(mask)
		port.AnalogClear(mask)
		port.DirOutput(mask)
	case PadModeInput:
		port.AnalogClear(mask)
		port.DirInput(mask)
	case PadModeInputAnalog:
		port.AnalogSet(mask)
		port.DirInput(mask)
	default:
		fatal("pal set group mode", ErrUnsupportedPadMode)
	}
}

// SetPadMode programs a single pad.
func SetPadMode(port IOPort, pad uint8, mode PadMode) {
	SetGroupMode(port, padMask(pad), mode)
}

func padMask(pad uint8) uint32 { return 1 << (pad & 31) }

// SetPad drives a pad high.
func SetPad(port IOPort, pad uint8) { port.LatchSet(padMask(pad)) }

// ClearPad drives a pad low.
func ClearPad(port IOPort, pad uint8) { port.LatchClear(padMask(pad)) }

// TogglePad inverts the latch of a pad.
func TogglePad(port IOPort, pad uint8) { port.LatchToggle(padMask(pad)) }

// WritePad drives a pad to level.
func WritePad(port IOPort, pad uint8, level bool) {
	if level {
		SetPad(port, pad)
	} else {
		ClearPad(port, pad)
	}
}

// ReadPad returns the level on a pad.
func ReadPad(port IOPort, pad uint8) bool {
	return port.ReadPort()&padMask(pad) != 0
}

// WriteGroup latches bits onto the pads selected by mask. Pads are set
// before they are cleared.
func WriteGroup(port IOPort, mask, bits uint32) {
	if set := bits & mask; set != 0 {
		port.LatchSet(set)
	}
	if clr := ^bits & mask; clr != 0 {
		port.LatchClear(clr)
	}
}

// PadGroup is a set of pads on one port, referenced by value.
type PadGroup struct {
	Port IOPort
	Mask uint32
}

// SetMode programs every pad of the group.
func (g PadGroup) SetMode(mode PadMode) { SetGroupMode(g.Port, g.Mask, mode) }

// Write latches bits onto the group.
func (g PadGroup) Write(bits uint32) { WriteGroup(g.Port, g.Mask, bits) }

// Read returns the levels of the group's pads.
func (g PadGroup) Read() uint32 { return g.Port.ReadPort() & g.Mask }
