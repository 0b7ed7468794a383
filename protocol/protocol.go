// Package protocol implements the framed wire format spoken between the
// SPI bridge firmware and host tools.
//
// A frame is
//
//	len | seq | payload | crc16 (big-endian) | 0x7E
//
// where len counts the whole frame and the CRC covers len, seq and the
// payload. Integers in the payload are VLQ encoded.
package protocol

// Version of the bridge wire format.
const Version = "1"

// Frame layout
const (
	FrameHeaderSize  = 2
	FrameTrailerSize = 3
	FrameMin         = FrameHeaderSize + FrameTrailerSize
	FrameMax         = 255
	PayloadMax       = FrameMax - FrameMin

	FramePositionLen = 0
	FramePositionSeq = 1
	FrameSync        = 0x7E

	// Sequence numbers are 4 bits; the high nibble marks the direction.
	SeqMask     = 0x0F
	SeqToDevice = 0x10
	SeqToHost   = 0x00
)
