package protocol

import (
	"errors"
	"fmt"
)

const (
	// TypeSize is the length of the leading message type tag.
	TypeSize = 1
	// ChecksumSize is the length of the trailing checksum byte.
	ChecksumSize = 1
	// MinFrameSize is the shortest valid frame: a tag and a checksum with an
	// empty payload.
	MinFrameSize = TypeSize + ChecksumSize
)

var (
	// ErrFrameTooShort indicates a datagram shorter than MinFrameSize.
	ErrFrameTooShort = errors.New("frame too short")
	// ErrChecksumMismatch indicates the trailing checksum does not match the
	// checksum computed over the tag and payload.
	ErrChecksumMismatch = errors.New("frame checksum mismatch")
)

// Frame is a validated datagram with the tag and checksum stripped.
type Frame struct {
	Type MessageType
	// Payload aliases the buffer passed to DecodeFrame. Copy it before the
	// buffer is reused.
	Payload []byte
}

// DecodeFrame validates raw and splits it into its type and payload.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) < MinFrameSize {
		return Frame{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrFrameTooShort, len(raw), MinFrameSize)
	}
	last := len(raw) - ChecksumSize
	if got, want := Checksum(raw[:last]), raw[last]; got != want {
		return Frame{}, fmt.Errorf("%w: computed 0x%02x, frame carries 0x%02x", ErrChecksumMismatch, got, want)
	}
	return Frame{
		Type:    MessageType(raw[0]),
		Payload: raw[TypeSize:last],
	}, nil
}

// AppendFrame appends the encoded frame for t and payload to dst.
func AppendFrame(dst []byte, t MessageType, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, byte(t))
	dst = append(dst, payload...)
	return append(dst, Checksum(dst[start:]))
}

// EncodeFrame returns [t][payload][checksum].
func EncodeFrame(t MessageType, payload []byte) []byte {
	return AppendFrame(make([]byte, 0, len(payload)+MinFrameSize), t, payload)
}

// EncodeReply returns the 2-byte zero-payload frame for t.
func EncodeReply(t MessageType) []byte {
	return EncodeFrame(t, nil)
}
