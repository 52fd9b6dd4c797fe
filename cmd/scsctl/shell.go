package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/hipsterbrown/scservo/scs"
)

// Shell provides the ishell backed servo console.
type Shell struct {
	Shell   *ishell.Shell
	Bus     *scs.Bus
	Timeout time.Duration
}

const shellKey = "$shell"

// NewShell creates a console bound to an open bus.
func NewShell(bus *scs.Bus, timeout time.Duration) *Shell {
	s := &Shell{
		Shell:   ishell.New(),
		Bus:     bus,
		Timeout: timeout,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt("scs > ")
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// Run processes the given commands, or enters the interactive shell when
// none are given.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	s.Shell.Run()
}

func shellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

func (s *Shell) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.Timeout)
}

func parseID(arg string) (byte, error) {
	v, err := strconv.ParseUint(arg, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid servo id %q", arg)
	}
	return byte(v), nil
}

func parseInt(arg string) (int, error) {
	v, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", arg)
	}
	return v, nil
}

var commands = []*ishell.Cmd{
	{
		Name:    "pos",
		Aliases: []string{"move"},
		Help:    "ID POSITION [SPEED] - move a servo",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("usage: pos ID POSITION [SPEED]"))
				return
			}
			s := shellFrom(c)
			id, err := parseID(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			pos, err := parseInt(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			speed := 0
			if len(c.Args) > 2 {
				if speed, err = parseInt(c.Args[2]); err != nil {
					c.Err(err)
					return
				}
			}
			ctx, cancel := s.ctx()
			defer cancel()
			if err := s.Bus.SetPosition(ctx, id, pos, speed); err != nil {
				c.Err(err)
				return
			}
			glog.V(1).Infof("servo %d -> position %d speed %d", id, pos, speed)
			c.Println("OK")
		},
	},
	{
		Name: "getpos",
		Help: "ID - read present position",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("usage: getpos ID"))
				return
			}
			s := shellFrom(c)
			id, err := parseID(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			ctx, cancel := s.ctx()
			defer cancel()
			pos, err := s.Bus.Position(ctx, id)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(pos)
		},
	},
	{
		Name: "speed",
		Help: "ID SPEED - run a servo as a continuous-rotation motor",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("usage: speed ID SPEED"))
				return
			}
			s := shellFrom(c)
			id, err := parseID(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			speed, err := parseInt(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			ctx, cancel := s.ctx()
			defer cancel()
			if err := s.Bus.SetMotorSpeed(ctx, id, speed); err != nil {
				c.Err(err)
				return
			}
			glog.V(1).Infof("servo %d -> motor speed %d", id, speed)
			c.Println("OK")
		},
	},
	{
		Name: "stop",
		Help: "ID - disable torque on a servo",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("usage: stop ID"))
				return
			}
			s := shellFrom(c)
			id, err := parseID(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			ctx, cancel := s.ctx()
			defer cancel()
			if err := s.Bus.Stop(ctx, id); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	},
	{
		Name: "stopall",
		Help: "disable torque on every servo (broadcast)",
		Func: func(c *ishell.Context) {
			s := shellFrom(c)
			ctx, cancel := s.ctx()
			defer cancel()
			// Devices do not acknowledge broadcast writes; a timeout here
			// usually just means the stop went out unanswered.
			if err := s.Bus.StopAll(ctx); err != nil && !scs.IsTimeout(err) {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	},
	{
		Name: "moving",
		Help: "ID - report whether a servo is moving",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("usage: moving ID"))
				return
			}
			s := shellFrom(c)
			id, err := parseID(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			ctx, cancel := s.ctx()
			defer cancel()
			moving, err := s.Bus.IsMoving(ctx, id)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(moving)
		},
	},
	{
		Name: "telemetry",
		Help: "ID - read position, speed, load, voltage and temperature",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("usage: telemetry ID"))
				return
			}
			s := shellFrom(c)
			id, err := parseID(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			ctx, cancel := s.ctx()
			defer cancel()

			servo := scs.NewServo(s.Bus, id)
			pos, err := servo.Position(ctx)
			if err != nil {
				c.Err(err)
				return
			}
			speed, err := servo.Speed(ctx)
			if err != nil {
				c.Err(err)
				return
			}
			load, err := servo.Load(ctx)
			if err != nil {
				c.Err(err)
				return
			}
			voltage, err := servo.Voltage(ctx)
			if err != nil {
				c.Err(err)
				return
			}
			temp, err := servo.Temperature(ctx)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("position: %d\nspeed: %d\nload: %d\nvoltage: %.1fV\ntemperature: %d°C\n",
				pos, speed, load, float64(voltage)/10, temp)
		},
	},
	{
		Name: "changeid",
		Help: "OLD NEW - rename a servo",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("usage: changeid OLD NEW"))
				return
			}
			s := shellFrom(c)
			oldID, err := parseID(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			newID, err := parseID(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			ctx, cancel := s.ctx()
			defer cancel()
			if err := s.Bus.ChangeID(ctx, oldID, newID); err != nil {
				c.Err(err)
				return
			}
			glog.Infof("servo %d renamed to %d", oldID, newID)
			c.Println("OK")
		},
	},
	{
		Name: "read",
		Help: "ID ADDR LEN - raw register read",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 3 {
				c.Err(fmt.Errorf("usage: read ID ADDR LEN"))
				return
			}
			s := shellFrom(c)
			id, err := parseID(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			addr, err := strconv.ParseUint(c.Args[1], 0, 8)
			if err != nil {
				c.Err(fmt.Errorf("invalid address %q", c.Args[1]))
				return
			}
			length, err := parseInt(c.Args[2])
			if err != nil {
				c.Err(err)
				return
			}
			ctx, cancel := s.ctx()
			defer cancel()
			data, err := s.Bus.ReadRegister(ctx, id, byte(addr), length)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("% 02X\n", data)
		},
	},
}
