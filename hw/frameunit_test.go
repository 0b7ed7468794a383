package hw

import (
	"errors"
	"testing"
)

// echoBus returns each byte inverted and records the configuration.
type echoBus struct {
	hz      uint32
	mode    uint8
	out     []byte
	failCfg error
	failAt  int
}

func (b *echoBus) Configure(hz uint32, mode uint8) error {
	if b.failCfg != nil {
		return b.failCfg
	}
	b.hz, b.mode = hz, mode
	return nil
}

func (b *echoBus) Transfer(v byte) (byte, error) {
	if b.failAt > 0 && len(b.out)+1 == b.failAt {
		return 0, errors.New("bus stuck")
	}
	b.out = append(b.out, v)
	return ^v, nil
}

func TestFrameUnitModeDecode(t *testing.T) {
	tests := []struct {
		con  uint32
		mode uint8
	}{
		{SPICON_CKE, 0},
		{0, 1},
		{SPICON_CKP | SPICON_CKE, 2},
		{SPICON_CKP, 3},
	}
	for _, tt := range tests {
		bus := &echoBus{}
		u := NewFrameUnit(bus, 40000000, nil, -1)
		u.SetBaud(19)
		u.SetControl(SPICON_ON | SPICON_MSTEN | tt.con)
		if bus.mode != tt.mode {
			t.Errorf("CON 0x%x: mode %d, want %d", tt.con, bus.mode, tt.mode)
		}
		if bus.hz != 1000000 {
			t.Errorf("CON 0x%x: %d Hz, want 1000000", tt.con, bus.hz)
		}
	}
}

func TestFrameUnitShiftsMSBFirst(t *testing.T) {
	tests := []struct {
		con   uint32
		frame uint32
		out   []byte
		in    uint32
	}{
		{0, 0x1A5, []byte{0xA5}, 0x5A},
		{SPICON_MODE16, 0x1234, []byte{0x12, 0x34}, 0xEDCB},
		{SPICON_MODE32, 0x01020304, []byte{1, 2, 3, 4}, 0xFEFDFCFB},
	}
	for _, tt := range tests {
		bus := &echoBus{}
		intc := &IntController{}
		u := NewFrameUnit(bus, 40000000, intc, 40)
		u.SetControl(SPICON_ON | SPICON_MSTEN | tt.con)
		u.WriteBuf(tt.frame)
		if string(bus.out) != string(tt.out) {
			t.Errorf("CON 0x%x: shifted %x, want %x", tt.con, bus.out, tt.out)
		}
		if !u.STAT.HasBits(SPISTAT_SPIRBF) || u.STAT.HasBits(SPISTAT_SPIBUSY) {
			t.Errorf("CON 0x%x: status 0x%x after frame", tt.con, u.Status())
		}
		if !intc.Flagged(40) {
			t.Errorf("CON 0x%x: receive line not raised", tt.con)
		}
		if got := u.ReadBuf(); got != tt.in {
			t.Errorf("CON 0x%x: read 0x%x, want 0x%x", tt.con, got, tt.in)
		}
		if u.STAT.HasBits(SPISTAT_SPIRBF) {
			t.Errorf("CON 0x%x: RBF still set after read", tt.con)
		}
	}
}

func TestFrameUnitOverflow(t *testing.T) {
	u := NewFrameUnit(&echoBus{}, 40000000, nil, -1)
	u.SetControl(SPICON_ON)
	u.WriteBuf(1)
	u.WriteBuf(2)
	if !u.STAT.HasBits(SPISTAT_SPIROV) {
		t.Error("Expected overflow when the first frame was not read")
	}
}

func TestFrameUnitOffIgnoresWrites(t *testing.T) {
	bus := &echoBus{}
	u := NewFrameUnit(bus, 40000000, nil, -1)
	u.WriteBuf(0xFF)
	if len(bus.out) != 0 || u.STAT.HasBits(SPISTAT_SPIRBF) {
		t.Error("Write while off reached the bus")
	}
}

func TestFrameUnitConfigureFailure(t *testing.T) {
	bus := &echoBus{failCfg: errors.New("unsupported mode")}
	u := NewFrameUnit(bus, 40000000, nil, -1)
	u.SetControl(SPICON_ON | SPICON_CKP)
	if u.CON.HasBits(SPICON_ON) {
		t.Error("Unit switched on despite configuration failure")
	}
	if u.Err() == nil {
		t.Error("Configuration error not kept")
	}
}

func TestFrameUnitTransferFailureStaysBusy(t *testing.T) {
	bus := &echoBus{failAt: 2}
	intc := &IntController{}
	u := NewFrameUnit(bus, 40000000, intc, 3)
	u.SetControl(SPICON_ON | SPICON_MODE16)
	u.WriteBuf(0xBEEF)
	if !u.STAT.HasBits(SPISTAT_SPIBUSY) || u.STAT.HasBits(SPISTAT_SPIRBF) {
		t.Errorf("Status 0x%x after failed frame, want BUSY without RBF", u.Status())
	}
	if intc.Flagged(3) {
		t.Error("Failed frame raised the receive line")
	}
	if u.Err() == nil {
		t.Error("Transfer error not kept")
	}

	u.SetControl(0)
	if u.Status() != SPISTAT_SPITBE {
		t.Errorf("Status 0x%x after switching off, want TBE only", u.Status())
	}
}
