package protocol

import (
	"errors"
	"io"
)

var (
	ErrPayloadTooLarge = errors.New("payload too large for one frame")
	ErrBadSequence     = errors.New("frame sequence has wrong direction")

	// ErrNoData is returned by FrameReader.Next when a read came back empty,
	// which is how a serial port reports its read timeout.
	ErrNoData = errors.New("no data")
)

// EncodeFrame wraps payload in a frame with the given sequence byte.
func EncodeFrame(seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > PayloadMax {
		return nil, ErrPayloadTooLarge
	}
	n := len(payload) + FrameMin
	frame := make([]byte, 0, n)
	frame = append(frame, byte(n), seq)
	frame = append(frame, payload...)
	crc := CRC16(frame)
	return append(frame, byte(crc>>8), byte(crc), FrameSync), nil
}

// FrameReader splits a byte stream into frames. Corrupt input is skipped
// up to the next sync byte.
type FrameReader struct {
	r   io.Reader
	buf []byte
	tmp [64]byte

	// Dropped counts bytes discarded while resynchronizing.
	Dropped int
}

// NewFrameReader reads frames from r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// Next returns the sequence byte and payload of the next valid frame. The
// payload is only valid until the following call.
func (fr *FrameReader) Next() (seq uint8, payload []byte, err error) {
	for {
		if seq, payload, ok := fr.parse(); ok {
			return seq, payload, nil
		}
		n, err := fr.r.Read(fr.tmp[:])
		fr.buf = append(fr.buf, fr.tmp[:n]...)
		if n == 0 {
			if err == nil {
				err = ErrNoData
			}
			return 0, nil, err
		}
	}
}

// parse extracts one frame from the buffer, discarding garbage in front of
// it.
func (fr *FrameReader) parse() (uint8, []byte, bool) {
	for len(fr.buf) > 0 {
		if fr.buf[0] == FrameSync {
			fr.buf = fr.buf[1:]
			continue
		}
		n := int(fr.buf[FramePositionLen])
		if n < FrameMin {
			fr.resync()
			continue
		}
		if len(fr.buf) > FramePositionSeq && fr.buf[FramePositionSeq]&^(SeqMask|SeqToDevice) != 0 {
			fr.resync()
			continue
		}
		if len(fr.buf) < n {
			return 0, nil, false
		}
		frame := fr.buf[:n]
		crc := uint16(frame[n-3])<<8 | uint16(frame[n-2])
		if frame[n-1] != FrameSync || crc != CRC16(frame[:n-FrameTrailerSize]) {
			fr.resync()
			continue
		}
		fr.buf = fr.buf[n:]
		return frame[FramePositionSeq], frame[FrameHeaderSize : n-FrameTrailerSize], true
	}
	return 0, nil, false
}

// resync drops everything up to and including the next sync byte.
func (fr *FrameReader) resync() {
	for i, b := range fr.buf {
		if b == FrameSync {
			fr.Dropped += i + 1
			fr.buf = fr.buf[i+1:]
			return
		}
	}
	fr.Dropped += len(fr.buf)
	fr.buf = fr.buf[:0]
}
