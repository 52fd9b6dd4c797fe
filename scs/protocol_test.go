package scs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Checksum(t *testing.T) {
	// Vector from the protocol manual:
	// read 2 bytes from present position (0x38) on servo 1:
	// FF FF 01 04 02 38 02 BE, checksum = ~(01+04+02+38+02) = BE
	m := Message{ID: 0x01, Instruction: InstRead, Params: []byte{0x38, 0x02}}
	assert.Equal(t, byte(0xBE), m.Checksum())
}

func TestMessage_Encode(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want []byte
	}{
		{
			name: "read present position",
			msg:  Message{ID: 0x01, Instruction: InstRead, Params: []byte{0x38, 0x02}},
			want: []byte{0xFF, 0xFF, 0x01, 0x04, 0x02, 0x38, 0x02, 0xBE},
		},
		{
			name: "broadcast id write",
			msg:  Message{ID: BroadcastID, Instruction: InstWrite, Params: []byte{0x05, 0x01}},
			want: []byte{0xFF, 0xFF, 0xFE, 0x04, 0x03, 0x05, 0x01, 0xF4},
		},
		{
			name: "status reply",
			msg:  Message{ID: 0x01},
			want: []byte{0xFF, 0xFF, 0x01, 0x02, 0x00, 0xFC},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Encode())
		})
	}
}

func TestMessage_RoundTrip(t *testing.T) {
	params := [][]byte{
		nil,
		{0x2A},
		{0x2A, 0x02, 0x00, 0x00, 0x00, 0x01, 0xF4},
		make([]byte, maxParams),
	}

	for _, p := range params {
		m := Message{ID: 7, Instruction: InstWrite, Params: p}
		decoded, err := DecodeMessage(m.Encode())
		require.NoError(t, err)
		assert.Equal(t, m.ID, decoded.ID)
		assert.Equal(t, m.Instruction, decoded.Instruction)
		assert.Equal(t, len(p), len(decoded.Params))
		if len(p) > 0 {
			assert.Equal(t, p, decoded.Params)
		}
	}
}

func TestDecodeMessage_TooShort(t *testing.T) {
	_, err := DecodeMessage([]byte{0xFF, 0xFF, 0x01, 0x02, 0x00})
	assert.ErrorIs(t, err, ErrFrameTooShort)
}

func TestDecodeMessage_InvalidSync(t *testing.T) {
	_, err := DecodeMessage([]byte{0xFF, 0xFD, 0x01, 0x02, 0x00, 0xFC})
	assert.ErrorIs(t, err, ErrInvalidSync)
}

func TestDecodeMessage_InvalidLength(t *testing.T) {
	// Length byte below 2 declares a negative parameter count.
	_, err := DecodeMessage([]byte{0xFF, 0xFF, 0x01, 0x01, 0x00, 0xFD})
	assert.ErrorIs(t, err, ErrInvalidParamLength)
}

func TestDecodeMessage_ChecksumMismatch(t *testing.T) {
	_, err := DecodeMessage([]byte{0xFF, 0xFF, 0x01, 0x02, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestDecodeMessage_TrailingBytesIgnored(t *testing.T) {
	frame := append(Message{ID: 1}.Encode(), 0xDE, 0xAD)
	m, err := DecodeMessage(frame)
	require.NoError(t, err)
	assert.Equal(t, byte(1), m.ID)
}

func TestDecodeMessage_ChecksumSensitivity(t *testing.T) {
	base := Message{ID: 0x01, Instruction: InstWrite, Params: []byte{0x2A, 0x02, 0x00}}.Encode()

	// Flipping any single bit of the id, length, instruction or parameter
	// bytes must be caught by the checksum. Sync bytes and the checksum
	// itself are excluded: those fail differently or are the check itself.
	for i := 2; i < len(base)-1; i++ {
		for bit := 0; bit < 8; bit++ {
			frame := make([]byte, len(base))
			copy(frame, base)
			frame[i] ^= 1 << bit

			_, err := DecodeMessage(frame)
			assert.Errorf(t, err, "flip byte %d bit %d went undetected", i, bit)
		}
	}
}

func TestWordHelpers(t *testing.T) {
	// SCSCL is big-endian on the wire.
	assert.Equal(t, []byte{0x12, 0x34}, EncodeWord(0x1234))
	assert.Equal(t, uint16(0x1234), DecodeWord([]byte{0x12, 0x34}))
	assert.Equal(t, uint16(0), DecodeWord([]byte{0x12}))
}
