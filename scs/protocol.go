// Package scs provides a Go driver for SCSCL-family serial bus servo and
// motor controllers communicating over a half-duplex UART link.
package scs

import (
	"encoding/binary"
	"fmt"
)

// Instruction codes per the SCSCL communication protocol.
const (
	InstRead  byte = 0x02
	InstWrite byte = 0x03
)

// Special ID values.
const (
	BroadcastID byte = 0xFE
	MaxID       byte = 0xFD
)

// Frame header bytes.
const (
	headerByte1 = 0xFF
	headerByte2 = 0xFF
)

// Frame geometry.
const (
	// minFrameLength is the shortest valid frame: header(2) + id(1) +
	// length(1) + instruction(1) + checksum(1).
	minFrameLength = 6

	// maxParams keeps the length field representable in a single byte.
	maxParams = 252
)

// Message represents one SCSCL protocol frame: an instruction addressed to a
// device, or a device's reply. In replies the instruction field carries the
// device status code (0 = ok).
type Message struct {
	ID          byte
	Instruction byte
	Params      []byte
}

// Checksum computes the frame checksum: the bitwise complement of the low
// byte of the sum of id, length field, instruction and parameters.
func (m Message) Checksum() byte {
	sum := m.ID + byte(len(m.Params)+2) + m.Instruction
	for _, b := range m.Params {
		sum += b
	}
	return ^sum
}

// Encode serializes the message to its wire format:
// header(2) + id(1) + length(1) + instruction(1) + params(n) + checksum(1).
// Callers must keep Params at or below 252 bytes.
func (m Message) Encode() []byte {
	buf := make([]byte, 0, minFrameLength+len(m.Params))
	buf = append(buf, headerByte1, headerByte2)
	buf = append(buf, m.ID)
	buf = append(buf, byte(len(m.Params)+2))
	buf = append(buf, m.Instruction)
	buf = append(buf, m.Params...)
	buf = append(buf, m.Checksum())
	return buf
}

// DecodeMessage parses and validates a wire-format frame. Bytes after the
// checksum position are ignored; delimiting a frame inside a raw byte stream
// is the bus reader's job.
func DecodeMessage(data []byte) (Message, error) {
	if len(data) < minFrameLength {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(data))
	}
	if data[0] != headerByte1 || data[1] != headerByte2 {
		return Message{}, fmt.Errorf("%w: % 02X", ErrInvalidSync, data[:2])
	}

	length := int(data[3])
	paramLen := length - 2
	if paramLen < 0 || paramLen > maxParams {
		return Message{}, fmt.Errorf("%w: %d", ErrInvalidParamLength, paramLen)
	}
	if len(data) < 4+length {
		return Message{}, fmt.Errorf("%w: need %d bytes, have %d", ErrFrameTooShort, 4+length, len(data))
	}

	m := Message{
		ID:          data[2],
		Instruction: data[4],
	}
	if paramLen > 0 {
		m.Params = make([]byte, paramLen)
		copy(m.Params, data[5:5+paramLen])
	}

	if got, want := data[5+paramLen], m.Checksum(); got != want {
		return Message{}, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrChecksum, want, got)
	}

	return m, nil
}

func (m Message) String() string {
	return fmt.Sprintf("Message(id=%d, instruction=0x%02X, params=% 02X)", m.ID, m.Instruction, m.Params)
}

// SCSCL devices use big-endian byte order for multi-byte register values.

// EncodeWord converts a 16-bit value to wire byte order.
func EncodeWord(value uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, value)
	return buf
}

// DecodeWord converts wire bytes to a 16-bit value.
func DecodeWord(data []byte) uint16 {
	if len(data) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(data)
}
