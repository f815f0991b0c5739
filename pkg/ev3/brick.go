// Package ev3 drives a LEGO MINDSTORMS EV3 brick running ev3dev.
//
// Motors and LEDs go through the ev3go/ev3dev bindings for the kernel's
// tacho-motor and leds classes; motors are matched to output ports by
// address. Sound goes through the espeak and aplay binaries shipped with
// ev3dev.
package ev3

import (
	"sync"

	"github.com/teslashibe/go-tablebot/internal/log"
	"github.com/teslashibe/go-tablebot/pkg/robot"
)

// Brick implements robot.Brick on an ev3dev brick.
type Brick struct {
	*LEDs
	*Speaker

	find func(port robot.Port) (*TachoMotor, error)

	mu     sync.Mutex
	motors map[robot.Port]robot.Motor
}

// Open returns the local brick. Motors are expected to use driver; an empty
// driver means DefaultMotorDriver.
func Open(driver string) *Brick {
	if driver == "" {
		driver = DefaultMotorDriver
	}
	return &Brick{
		LEDs:    NewLEDs(),
		Speaker: NewSpeaker(),
		find: func(port robot.Port) (*TachoMotor, error) {
			return FindMotor(port, driver, func(err error) {
				log.Warn("ev3 motor driver mismatch", "port", port, "want", driver, "error", err)
			})
		},
		motors: make(map[robot.Port]robot.Motor),
	}
}

// Motor returns the motor on port. Lookups are cached; a port with nothing
// attached yields a motor whose calls all fail with the lookup error.
func (b *Brick) Motor(port robot.Port) robot.Motor {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m, ok := b.motors[port]; ok {
		return m
	}

	var m robot.Motor
	tm, err := b.find(port)
	if err != nil {
		log.Warn("ev3 motor unavailable", "port", port, "error", err)
		m = missingMotor{err: err}
	} else {
		log.Info("ev3 motor found", "port", port, "address", portAddress(port), "max_speed", tm.maxSpeed)
		m = tm
	}
	b.motors[port] = m
	return m
}

// Ensure Brick implements robot.Brick
var _ robot.Brick = (*Brick)(nil)
