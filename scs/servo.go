package scs

import "context"

// Servo provides a high-level handle for a single controller on a bus.
type Servo struct {
	bus *Bus
	id  byte
}

// NewServo creates a new Servo instance.
func NewServo(bus *Bus, id byte) *Servo {
	return &Servo{bus: bus, id: id}
}

// ID returns the servo's ID.
func (s *Servo) ID() byte {
	return s.id
}

// SetPosition commands the servo to move to pos at the given speed.
func (s *Servo) SetPosition(ctx context.Context, pos, speed int) error {
	return s.bus.SetPosition(ctx, s.id, pos, speed)
}

// Position reads the current position.
func (s *Servo) Position(ctx context.Context) (int, error) {
	return s.bus.Position(ctx, s.id)
}

// SetMotorSpeed switches the servo to continuous rotation at the given
// speed.
func (s *Servo) SetMotorSpeed(ctx context.Context, speed int) error {
	return s.bus.SetMotorSpeed(ctx, s.id, speed)
}

// Stop disables torque output.
func (s *Servo) Stop(ctx context.Context) error {
	return s.bus.Stop(ctx, s.id)
}

// Moving reports whether the servo is currently moving.
func (s *Servo) Moving(ctx context.Context) (bool, error) {
	return s.bus.IsMoving(ctx, s.id)
}

// Load reads the present load.
func (s *Servo) Load(ctx context.Context) (int, error) {
	return s.bus.Load(ctx, s.id)
}

// Speed reads the present speed.
func (s *Servo) Speed(ctx context.Context) (int, error) {
	return s.bus.Speed(ctx, s.id)
}

// Voltage reads the supply voltage in tenths of a volt.
func (s *Servo) Voltage(ctx context.Context) (int, error) {
	return s.bus.Voltage(ctx, s.id)
}

// Temperature reads the internal temperature in degrees Celsius.
func (s *Servo) Temperature(ctx context.Context) (int, error) {
	return s.bus.Temperature(ctx, s.id)
}

// ChangeID renames the servo. The handle tracks the new id on success.
func (s *Servo) ChangeID(ctx context.Context, newID byte) error {
	if err := s.bus.ChangeID(ctx, s.id, newID); err != nil {
		return err
	}
	s.id = newID
	return nil
}
