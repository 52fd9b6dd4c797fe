package scs

import (
	"context"
	"fmt"
	"time"
)

// ServoGroup manages coordinated operations across multiple servos. SCSCL
// controllers have no sync read/write instruction, so group operations run
// one transaction per servo over the shared bus.
type ServoGroup struct {
	bus    *Bus
	servos []*Servo
}

// NewServoGroup creates a new group from the given servos.
func NewServoGroup(bus *Bus, servos ...*Servo) *ServoGroup {
	return &ServoGroup{bus: bus, servos: servos}
}

// NewServoGroupByIDs creates servos with the given IDs and groups them.
func NewServoGroupByIDs(bus *Bus, ids ...byte) *ServoGroup {
	servos := make([]*Servo, len(ids))
	for i, id := range ids {
		servos[i] = NewServo(bus, id)
	}
	return NewServoGroup(bus, servos...)
}

// Servos returns the servos in this group.
func (g *ServoGroup) Servos() []*Servo {
	return g.servos
}

// ServoByID returns the servo with the given ID, or nil if not found.
func (g *ServoGroup) ServoByID(id byte) *Servo {
	for _, s := range g.servos {
		if s.ID() == id {
			return s
		}
	}
	return nil
}

// PositionMap is a map of servo ID to position value.
type PositionMap map[byte]int

// Positions reads the present position of every servo in the group.
func (g *ServoGroup) Positions(ctx context.Context) (PositionMap, error) {
	positions := make(PositionMap, len(g.servos))
	for _, s := range g.servos {
		pos, err := s.Position(ctx)
		if err != nil {
			return nil, fmt.Errorf("servo %d: %w", s.ID(), err)
		}
		positions[s.ID()] = pos
	}
	return positions, nil
}

// SetPositions commands each servo present in the positions map to its
// target at the given speed.
func (g *ServoGroup) SetPositions(ctx context.Context, positions PositionMap, speed int) error {
	for id, pos := range positions {
		if g.ServoByID(id) == nil {
			return fmt.Errorf("servo ID %d not in group", id)
		}
		if err := g.bus.SetPosition(ctx, id, pos, speed); err != nil {
			return fmt.Errorf("servo %d: %w", id, err)
		}
	}
	return nil
}

// StopAll disables torque on every servo in the group, individually
// addressed so each stop is acknowledged.
func (g *ServoGroup) StopAll(ctx context.Context) error {
	for _, s := range g.servos {
		if err := s.Stop(ctx); err != nil {
			return fmt.Errorf("servo %d: %w", s.ID(), err)
		}
	}
	return nil
}

// WaitForStop waits for all servos in the group to stop moving and returns
// their final positions.
func (g *ServoGroup) WaitForStop(ctx context.Context, timeout time.Duration) (PositionMap, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	expire := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-expire:
			pos, _ := g.Positions(ctx)
			return pos, fmt.Errorf("move timeout after %v", timeout)
		case <-ticker.C:
			allStopped := true
			for _, s := range g.servos {
				moving, err := s.Moving(ctx)
				if err != nil {
					continue
				}
				if moving {
					allStopped = false
					break
				}
			}
			if allStopped {
				return g.Positions(ctx)
			}
		}
	}
}
