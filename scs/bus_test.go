package scs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hipsterbrown/scservo/transports"
)

// ackWrites replies to every WRITE frame with a zero-status acknowledgment
// and leaves READ frames unanswered.
func ackWrites(frame []byte) []byte {
	if frame[4] != InstWrite {
		return nil
	}
	return Message{ID: frame[2]}.Encode()
}

func newTestBus(t *testing.T, mock *transports.MockTransport) *Bus {
	t.Helper()
	bus, err := NewBus(BusConfig{
		Transport: mock,
		Timeout:   50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { bus.Close() })
	return bus
}

func TestBus_SetPosition(t *testing.T) {
	mock := &transports.MockTransport{ReplyFunc: ackWrites}
	bus := newTestBus(t, mock)

	err := bus.SetPosition(context.Background(), 1, 512, 500)
	require.NoError(t, err)

	// First write restores the angle limits to switch into servo mode.
	require.Len(t, mock.Writes, 2)
	assert.Equal(t,
		Message{ID: 1, Instruction: InstWrite, Params: []byte{0x09, 0x00, 0x01, 0x03, 0xFF}}.Encode(),
		mock.Writes[0])

	// Second write is the 6-byte goal block: pos(2) + time(2) + speed(2).
	assert.Equal(t,
		Message{ID: 1, Instruction: InstWrite, Params: []byte{0x2A, 0x02, 0x00, 0x00, 0x00, 0x01, 0xF4}}.Encode(),
		mock.Writes[1])

	assert.Equal(t, ModeServo, bus.Mode(1))
}

func TestBus_SetPosition_ModeCached(t *testing.T) {
	mock := &transports.MockTransport{ReplyFunc: ackWrites}
	bus := newTestBus(t, mock)

	ctx := context.Background()
	require.NoError(t, bus.SetPosition(ctx, 1, 100, 0))
	require.NoError(t, bus.SetPosition(ctx, 1, 200, 0))

	// The second call must skip the angle-limit reconfiguration.
	require.Len(t, mock.Writes, 3)
	assert.Equal(t, byte(RegGoalPosition.Address), mock.Writes[2][5])
}

func TestBus_ModeSwitch(t *testing.T) {
	mock := &transports.MockTransport{ReplyFunc: ackWrites}
	bus := newTestBus(t, mock)

	ctx := context.Background()
	require.NoError(t, bus.SetPosition(ctx, 1, 512, 0))
	require.NoError(t, bus.SetMotorSpeed(ctx, 1, 100))

	// servo limits, goal position, motor limits, motor speed
	require.Len(t, mock.Writes, 4)
	assert.Equal(t,
		Message{ID: 1, Instruction: InstWrite, Params: []byte{0x09, 0x00, 0x00, 0x00, 0x00}}.Encode(),
		mock.Writes[2])
	assert.Equal(t, ModeMotor, bus.Mode(1))
}

func TestBus_SetMotorSpeed_Encoding(t *testing.T) {
	mock := &transports.MockTransport{ReplyFunc: ackWrites}
	bus := newTestBus(t, mock)

	ctx := context.Background()

	// Forward speeds are offset by 1024: 500 -> 1524 (0x05F4).
	require.NoError(t, bus.SetMotorSpeed(ctx, 1, 500))
	require.Len(t, mock.Writes, 2)
	assert.Equal(t,
		Message{ID: 1, Instruction: InstWrite, Params: []byte{0x2C, 0x05, 0xF4}}.Encode(),
		mock.Writes[1])

	// Reverse speeds send the bare magnitude: -500 -> 500 (0x01F4).
	require.NoError(t, bus.SetMotorSpeed(ctx, 1, -500))
	require.Len(t, mock.Writes, 3)
	assert.Equal(t,
		Message{ID: 1, Instruction: InstWrite, Params: []byte{0x2C, 0x01, 0xF4}}.Encode(),
		mock.Writes[2])
}

func TestBus_RangeValidation(t *testing.T) {
	mock := &transports.MockTransport{ReplyFunc: ackWrites}
	bus := newTestBus(t, mock)

	ctx := context.Background()

	assert.ErrorIs(t, bus.SetPosition(ctx, 1, 1024, 0), ErrOutOfRange)
	assert.ErrorIs(t, bus.SetPosition(ctx, 1, -1, 0), ErrOutOfRange)
	assert.ErrorIs(t, bus.SetPosition(ctx, 1, 0, 1501), ErrOutOfRange)
	assert.ErrorIs(t, bus.SetMotorSpeed(ctx, 1, 1024), ErrOutOfRange)
	assert.ErrorIs(t, bus.SetMotorSpeed(ctx, 1, -1024), ErrOutOfRange)

	// Boundaries are accepted.
	assert.NoError(t, bus.SetPosition(ctx, 1, 1023, 1500))
	assert.NoError(t, bus.SetMotorSpeed(ctx, 1, 1023))
	assert.NoError(t, bus.SetMotorSpeed(ctx, 1, -1023))
}

func TestBus_Position(t *testing.T) {
	mock := &transports.MockTransport{
		ReplyFunc: func(frame []byte) []byte {
			return Message{ID: frame[2], Params: []byte{0x02, 0x00}}.Encode()
		},
	}
	bus := newTestBus(t, mock)

	pos, err := bus.Position(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 512, pos)

	// The request is a READ of 2 bytes at the present-position register.
	require.Len(t, mock.Writes, 1)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x01, 0x04, 0x02, 0x38, 0x02, 0xBE}, mock.Writes[0])
}

func TestBus_Telemetry(t *testing.T) {
	mock := &transports.MockTransport{
		ReplyFunc: func(frame []byte) []byte {
			// Answer every READ with as many bytes as requested.
			if frame[4] != InstRead {
				return Message{ID: frame[2]}.Encode()
			}
			switch frame[5] {
			case RegMoving.Address:
				return Message{ID: frame[2], Params: []byte{0x01}}.Encode()
			case RegPresentVoltage.Address:
				return Message{ID: frame[2], Params: []byte{74}}.Encode()
			case RegPresentTemp.Address:
				return Message{ID: frame[2], Params: []byte{38}}.Encode()
			default:
				return Message{ID: frame[2], Params: []byte{0x01, 0x90}}.Encode()
			}
		},
	}
	bus := newTestBus(t, mock)
	ctx := context.Background()

	moving, err := bus.IsMoving(ctx, 1)
	require.NoError(t, err)
	assert.True(t, moving)

	load, err := bus.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 400, load)

	speed, err := bus.Speed(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 400, speed)

	voltage, err := bus.Voltage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 74, voltage)

	temp, err := bus.Temperature(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 38, temp)

	current, err := bus.Current(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 400, current)
}

func TestBus_DeviceError(t *testing.T) {
	mock := &transports.MockTransport{
		ReplyFunc: func(frame []byte) []byte {
			return Message{ID: frame[2], Instruction: 0x04}.Encode()
		},
	}
	bus := newTestBus(t, mock)

	err := bus.Stop(context.Background(), 1)
	require.Error(t, err)

	devErr, ok := GetDeviceError(err)
	require.True(t, ok)
	assert.Equal(t, byte(1), devErr.ID)
	assert.Equal(t, byte(0x04), devErr.Code)
}

func TestBus_ReplyTimeout(t *testing.T) {
	mock := &transports.MockTransport{} // never replies
	bus, err := NewBus(BusConfig{
		Transport: mock,
		Timeout:   10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer bus.Close()

	err = bus.Stop(context.Background(), 1)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestBus_ContextCancellation(t *testing.T) {
	mock := &transports.MockTransport{}
	bus, err := NewBus(BusConfig{
		Transport: mock,
		Timeout:   time.Second,
	})
	require.NoError(t, err)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err = bus.Stop(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBus_InvalidReplyLength(t *testing.T) {
	mock := &transports.MockTransport{
		// Length byte below 2 declares a negative parameter count.
		ReadData: []byte{0xFF, 0xFF, 0x01, 0x01, 0x00, 0xFD},
	}
	bus := newTestBus(t, mock)

	_, err := bus.Position(context.Background(), 1)
	assert.ErrorIs(t, err, ErrInvalidParamLength)
}

func TestBus_StopAll(t *testing.T) {
	mock := &transports.MockTransport{ReplyFunc: ackWrites}
	bus := newTestBus(t, mock)

	err := bus.StopAll(context.Background())
	require.NoError(t, err)

	require.Len(t, mock.Writes, 1)
	assert.Equal(t,
		Message{ID: BroadcastID, Instruction: InstWrite, Params: []byte{0x28, 0x00}}.Encode(),
		mock.Writes[0])
}

func TestBus_BroadcastDoesNotCachePerDevice(t *testing.T) {
	mock := &transports.MockTransport{ReplyFunc: ackWrites}
	bus := newTestBus(t, mock)

	ctx := context.Background()
	require.NoError(t, bus.SetAllPositions(ctx, 512, 0))

	// The broadcast reconfiguration is cached under the broadcast id only;
	// a later per-device command must still reconfigure that device.
	assert.Equal(t, ModeServo, bus.Mode(BroadcastID))
	assert.Equal(t, ModeUnknown, bus.Mode(1))

	require.NoError(t, bus.SetPosition(ctx, 1, 512, 0))
	require.Len(t, mock.Writes, 4)
	assert.Equal(t, byte(RegMinAngleLimit.Address), mock.Writes[2][5])
}

func TestBus_ChangeID(t *testing.T) {
	mock := &transports.MockTransport{ReplyFunc: ackWrites}
	bus := newTestBus(t, mock)

	err := bus.ChangeID(context.Background(), 1, 9)
	require.NoError(t, err)

	require.Len(t, mock.Writes, 3)
	// Unlock under the old id, write the new id, re-lock under the new id.
	assert.Equal(t, Message{ID: 1, Instruction: InstWrite, Params: []byte{0x30, 0x00}}.Encode(), mock.Writes[0])
	assert.Equal(t, Message{ID: 1, Instruction: InstWrite, Params: []byte{0x05, 0x09}}.Encode(), mock.Writes[1])
	assert.Equal(t, Message{ID: 9, Instruction: InstWrite, Params: []byte{0x30, 0x01}}.Encode(), mock.Writes[2])
}

func TestBus_InvalidID(t *testing.T) {
	mock := &transports.MockTransport{ReplyFunc: ackWrites}
	bus := newTestBus(t, mock)

	ctx := context.Background()
	assert.ErrorIs(t, bus.Stop(ctx, 0), ErrInvalidID)
	assert.ErrorIs(t, bus.SetPosition(ctx, 0xFF, 0, 0), ErrInvalidID)
	_, err := bus.Position(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestBus_ClearsInputBeforeTransaction(t *testing.T) {
	mock := &transports.MockTransport{ReplyFunc: ackWrites}
	bus := newTestBus(t, mock)

	require.NoError(t, bus.Stop(context.Background(), 1))
	assert.Equal(t, 1, mock.Cleared)
}

func TestBus_Close(t *testing.T) {
	mock := &transports.MockTransport{}
	bus, err := NewBus(BusConfig{Transport: mock})
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	assert.True(t, mock.Closed)

	// Closing again is safe; operations after Close fail fast.
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Stop(context.Background(), 1), ErrBusClosed)
	_, err = bus.Position(context.Background(), 1)
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestNewBus_RequiresTransportOrPort(t *testing.T) {
	_, err := NewBus(BusConfig{})
	assert.Error(t, err)
}
