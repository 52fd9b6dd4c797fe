package scs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hipsterbrown/scservo/transports"
)

// Mode is the client-side view of a controller's operating configuration.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeServo
	ModeMotor
)

func (m Mode) String() string {
	switch m {
	case ModeServo:
		return "servo"
	case ModeMotor:
		return "motor"
	default:
		return "unknown"
	}
}

// Bus drives SCSCL servo and motor controllers on a half-duplex serial bus.
// All operations are serialized internally; only one transaction is ever in
// flight on the wire.
type Bus struct {
	transport Transport
	timeout   time.Duration
	pollEvery time.Duration

	mu     sync.Mutex
	modes  map[byte]Mode
	closed bool
}

// BusConfig holds configuration for creating a new Bus.
type BusConfig struct {
	// Transport is the underlying communication transport.
	// If nil, Port must be specified to open a serial connection.
	Transport Transport

	// Port is the serial port path (e.g., "/dev/ttyUSB0").
	// Ignored if Transport is provided.
	Port string

	// BaudRate is the communication speed. Default is 1000000.
	BaudRate int

	// Timeout bounds each transaction's reply wait. Default is 1 second.
	Timeout time.Duration

	// PollInterval is the pause between availability checks while waiting
	// for reply bytes. Default is 1ms.
	PollInterval time.Duration
}

// NewBus creates a new servo bus with the given configuration.
func NewBus(cfg BusConfig) (*Bus, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 1000000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}

	transport := cfg.Transport
	if transport == nil {
		if cfg.Port == "" {
			return nil, errors.New("either Transport or Port must be specified")
		}
		var err error
		transport, err = transports.OpenSerial(transports.SerialConfig{
			Port:     cfg.Port,
			BaudRate: cfg.BaudRate,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port: %w", err)
		}
	}

	return &Bus{
		transport: transport,
		timeout:   cfg.Timeout,
		pollEvery: cfg.PollInterval,
		modes:     make(map[byte]Mode),
	}, nil
}

// Close closes the bus and releases the transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	return b.transport.Close()
}

// Mode returns the cached operating mode for a device. The cache reflects
// only reconfigurations issued through this Bus; it can desync from the real
// device if the device is written out-of-band.
func (b *Bus) Mode(id byte) Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modes[id]
}

// Position control

// SetPosition commands the servo to move to pos (0-1023) at speed (0-1500,
// 0 = maximum). If the device is not known to be in servo mode it is
// reconfigured first by restoring its angle limits.
func (b *Bus) SetPosition(ctx context.Context, id byte, pos, speed int) error {
	if pos < 0 || pos > MaxPosition {
		return fmt.Errorf("%w: position %d (0-%d)", ErrOutOfRange, pos, MaxPosition)
	}
	if speed < 0 || speed > MaxPositionSpeed {
		return fmt.Errorf("%w: speed %d (0-%d)", ErrOutOfRange, speed, MaxPositionSpeed)
	}
	if err := validateID(id); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	if err := b.ensureModeLocked(ctx, id, ModeServo); err != nil {
		return err
	}

	// One 6-byte write to the goal-position block:
	// position(2) + time(2, unused) + speed(2).
	data := make([]byte, 0, 6)
	data = append(data, EncodeWord(uint16(pos))...)
	data = append(data, 0x00, 0x00)
	data = append(data, EncodeWord(uint16(speed))...)
	return b.writeRegisterLocked(ctx, id, RegGoalPosition.Address, data)
}

// SetAllPositions commands every controller on the bus via the broadcast
// address. The mode cache is updated under the broadcast id only, so a later
// per-device command still reconfigures that device.
func (b *Bus) SetAllPositions(ctx context.Context, pos, speed int) error {
	return b.SetPosition(ctx, BroadcastID, pos, speed)
}

// Position reads the present position (0-1023).
func (b *Bus) Position(ctx context.Context, id byte) (int, error) {
	data, err := b.ReadRegister(ctx, id, RegPresentPosition.Address, RegPresentPosition.Size)
	if err != nil {
		return 0, err
	}
	return int(DecodeWord(data)), nil
}

// Motor control

// SetMotorSpeed sets the controller to continuous rotation and commands its
// speed (-1023 to 1023; positive is clockwise). If the device is not known
// to be in motor mode it is reconfigured first by zeroing its angle limits.
func (b *Bus) SetMotorSpeed(ctx context.Context, id byte, speed int) error {
	if speed < MinMotorSpeed || speed > MaxMotorSpeed {
		return fmt.Errorf("%w: motor speed %d (%d-%d)", ErrOutOfRange, speed, MinMotorSpeed, MaxMotorSpeed)
	}
	if err := validateID(id); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	if err := b.ensureModeLocked(ctx, id, ModeMotor); err != nil {
		return err
	}

	// Direction is encoded by offset rather than a sign bit: reverse sends
	// the magnitude, forward sends magnitude + 1024.
	var encoded uint16
	if speed < 0 {
		encoded = uint16(-speed)
	} else {
		encoded = uint16(speed + MaxMotorSpeed + 1)
	}

	// In motor mode the goal-time register is reused as the speed register.
	return b.writeRegisterLocked(ctx, id, RegGoalTime.Address, EncodeWord(encoded))
}

// SetAllMotorSpeeds commands every controller on the bus via the broadcast
// address.
func (b *Bus) SetAllMotorSpeeds(ctx context.Context, speed int) error {
	return b.SetMotorSpeed(ctx, BroadcastID, speed)
}

// Stop disables torque on a controller. The cached mode is left untouched.
func (b *Bus) Stop(ctx context.Context, id byte) error {
	return b.WriteRegister(ctx, id, RegTorqueEnable.Address, []byte{0x00})
}

// StopAll disables torque on every controller via the broadcast address.
//
// Like every write on this bus, the broadcast write still waits for an
// acknowledgment frame. Devices do not reply to broadcast commands, so on a
// multi-device bus this wait times out (or picks up an error report from
// whichever device answers first). This mirrors the controller family's
// reference driver; pass a short Timeout if StopAll latency matters.
func (b *Bus) StopAll(ctx context.Context) error {
	return b.Stop(ctx, BroadcastID)
}

// Telemetry

// IsMoving reports whether the servo is currently moving.
func (b *Bus) IsMoving(ctx context.Context, id byte) (bool, error) {
	data, err := b.ReadRegister(ctx, id, RegMoving.Address, RegMoving.Size)
	if err != nil {
		return false, err
	}
	return data[0] != 0, nil
}

// Load reads the present load.
func (b *Bus) Load(ctx context.Context, id byte) (int, error) {
	data, err := b.ReadRegister(ctx, id, RegPresentLoad.Address, RegPresentLoad.Size)
	if err != nil {
		return 0, err
	}
	return int(DecodeWord(data)), nil
}

// Speed reads the present speed.
func (b *Bus) Speed(ctx context.Context, id byte) (int, error) {
	data, err := b.ReadRegister(ctx, id, RegPresentSpeed.Address, RegPresentSpeed.Size)
	if err != nil {
		return 0, err
	}
	return int(DecodeWord(data)), nil
}

// Voltage reads the supply voltage in tenths of a volt.
func (b *Bus) Voltage(ctx context.Context, id byte) (int, error) {
	data, err := b.ReadRegister(ctx, id, RegPresentVoltage.Address, RegPresentVoltage.Size)
	if err != nil {
		return 0, err
	}
	return int(data[0]), nil
}

// Temperature reads the internal temperature in degrees Celsius.
func (b *Bus) Temperature(ctx context.Context, id byte) (int, error) {
	data, err := b.ReadRegister(ctx, id, RegPresentTemp.Address, RegPresentTemp.Size)
	if err != nil {
		return 0, err
	}
	return int(data[0]), nil
}

// Current reads the present current draw.
func (b *Bus) Current(ctx context.Context, id byte) (int, error) {
	data, err := b.ReadRegister(ctx, id, RegPresentCurrent.Address, RegPresentCurrent.Size)
	if err != nil {
		return 0, err
	}
	return int(DecodeWord(data)), nil
}

// Version reads the firmware version word.
func (b *Bus) Version(ctx context.Context, id byte) (int, error) {
	data, err := b.ReadRegister(ctx, id, RegVersion.Address, RegVersion.Size)
	if err != nil {
		return 0, err
	}
	return int(DecodeWord(data)), nil
}

// Configuration

// SetTorqueEnabled enables or disables torque output.
func (b *Bus) SetTorqueEnabled(ctx context.Context, id byte, enabled bool) error {
	var val byte
	if enabled {
		val = 1
	}
	return b.WriteRegister(ctx, id, RegTorqueEnable.Address, []byte{val})
}

// ChangeID renames a controller, guarding the EEPROM write with the lock
// register: unlock under the old id, write the new id, re-lock under the
// new id. There is no rollback: if re-locking fails the device is already
// renamed and left unlocked.
func (b *Bus) ChangeID(ctx context.Context, oldID, newID byte) error {
	if err := validateID(oldID); err != nil {
		return err
	}
	if newID == 0 || newID > MaxID {
		return fmt.Errorf("%w: %d", ErrInvalidID, newID)
	}

	if err := b.Unlock(ctx, oldID); err != nil {
		return err
	}
	if err := b.WriteRegister(ctx, oldID, RegID.Address, []byte{newID}); err != nil {
		return err
	}
	return b.Lock(ctx, newID)
}

// Lock sets the EEPROM lock register, protecting configuration registers.
func (b *Bus) Lock(ctx context.Context, id byte) error {
	return b.WriteRegister(ctx, id, RegLock.Address, []byte{0x01})
}

// Unlock clears the EEPROM lock register.
func (b *Bus) Unlock(ctx context.Context, id byte) error {
	return b.WriteRegister(ctx, id, RegLock.Address, []byte{0x00})
}

// Register transactions

// WriteRegister writes bytes to a device register and waits for the
// acknowledgment frame. A non-zero status code in the reply surfaces as a
// DeviceError.
func (b *Bus) WriteRegister(ctx context.Context, id byte, addr byte, data []byte) error {
	if err := validateID(id); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	return b.writeRegisterLocked(ctx, id, addr, data)
}

// ReadRegister reads length bytes from a device register.
func (b *Bus) ReadRegister(ctx context.Context, id byte, addr byte, length int) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	return b.readRegisterLocked(ctx, id, addr, length)
}

// Internal methods

func validateID(id byte) error {
	if id == BroadcastID {
		return nil
	}
	if id == 0 || id > MaxID {
		return fmt.Errorf("%w: %d (valid range: 1-%d)", ErrInvalidID, id, MaxID)
	}
	return nil
}

// ensureModeLocked issues the angle-limit reconfiguration write when the
// cached mode for id does not match want. Broadcast commands always
// reconfigure: the broadcast address never caches a trustworthy mode for the
// individual devices behind it.
func (b *Bus) ensureModeLocked(ctx context.Context, id byte, want Mode) error {
	if id != BroadcastID && b.modes[id] == want {
		return nil
	}

	limits := servoModeLimits
	if want == ModeMotor {
		limits = motorModeLimits
	}
	if err := b.writeRegisterLocked(ctx, id, RegMinAngleLimit.Address, limits); err != nil {
		return err
	}
	b.modes[id] = want
	return nil
}

func (b *Bus) writeRegisterLocked(ctx context.Context, id byte, addr byte, data []byte) error {
	params := make([]byte, 0, 1+len(data))
	params = append(params, addr)
	params = append(params, data...)

	reply, err := b.transactLocked(ctx, Message{ID: id, Instruction: InstWrite, Params: params})
	if err != nil {
		return err
	}
	if reply.Instruction != 0 {
		return &DeviceError{ID: id, Code: reply.Instruction}
	}
	return nil
}

func (b *Bus) readRegisterLocked(ctx context.Context, id byte, addr byte, length int) ([]byte, error) {
	reply, err := b.transactLocked(ctx, Message{ID: id, Instruction: InstRead, Params: []byte{addr, byte(length)}})
	if err != nil {
		return nil, err
	}
	return reply.Params, nil
}

// transactLocked runs one request/reply exchange. The input buffer is
// cleared first to discard stale bytes from a prior, possibly aborted,
// exchange; on this half-duplex bus the addressed device only ever replies
// to the most recent command.
func (b *Bus) transactLocked(ctx context.Context, m Message) (Message, error) {
	if err := b.transport.ClearInput(); err != nil {
		return Message{}, &CommError{Op: "clear input", Err: err}
	}

	frame := m.Encode()
	n, err := b.transport.Write(frame)
	if err != nil {
		return Message{}, &CommError{Op: "write", Err: err}
	}
	if n != len(frame) {
		return Message{}, &CommError{Op: "write", Err: fmt.Errorf("incomplete write: %d of %d bytes", n, len(frame))}
	}

	return b.readFrameLocked(ctx)
}

// readFrameLocked reads one reply frame. The channel is a raw byte stream
// with no delimiting beyond the length field embedded in the frame, so the
// read happens in two phases: the fixed 6-byte minimum region first, then
// the parameter bytes it declares.
func (b *Bus) readFrameLocked(ctx context.Context) (Message, error) {
	deadline := time.Now().Add(b.timeout)

	header := make([]byte, minFrameLength)
	if err := b.readExactLocked(ctx, header, deadline); err != nil {
		return Message{}, err
	}

	paramLen := int(header[3]) - 2
	if paramLen < 0 || paramLen > maxParams {
		return Message{}, fmt.Errorf("%w: %d", ErrInvalidParamLength, paramLen)
	}

	frame := header
	if paramLen > 0 {
		rest := make([]byte, paramLen)
		if err := b.readExactLocked(ctx, rest, deadline); err != nil {
			return Message{}, err
		}
		frame = append(frame, rest...)
	}

	return DecodeMessage(frame)
}

// readExactLocked polls transport availability until len(p) bytes can be
// read in one shot, honoring the context and the transaction deadline.
func (b *Bus) readExactLocked(ctx context.Context, p []byte, deadline time.Time) error {
	for {
		avail, err := b.transport.BytesAvailable()
		if err != nil {
			return &CommError{Op: "read", Err: err}
		}
		if avail >= len(p) {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %d of %d reply bytes", ErrTimeout, avail, len(p))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.pollEvery):
		}
	}

	if err := b.transport.ReadExact(p); err != nil {
		return &CommError{Op: "read", Err: err}
	}
	return nil
}
