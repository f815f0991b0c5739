package ev3

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ev3go/ev3dev"

	"github.com/teslashibe/go-tablebot/pkg/robot"
)

// pollInterval is how often a blocking run checks the motor state.
const pollInterval = 20 * time.Millisecond

// DefaultMotorDriver is the ev3dev driver of the large servo motors.
const DefaultMotorDriver = "lego-ev3-l-motor"

// tacho is the part of an ev3dev tacho motor TachoMotor drives.
type tacho interface {
	maxSpeed() (int, error)
	runTimed(sp int, d time.Duration) error
	brake() error
	running() (bool, error)
}

// devTacho drives a motor through the ev3dev tacho-motor class.
type devTacho struct {
	m *ev3dev.TachoMotor
}

func (t devTacho) maxSpeed() (int, error) {
	return t.m.MaxSpeed()
}

func (t devTacho) runTimed(sp int, d time.Duration) error {
	return t.m.SetSpeedSetpoint(sp).SetTimeSetpoint(d).Command("run-timed").Err()
}

func (t devTacho) brake() error {
	return t.m.SetStopAction("brake").Command("stop").Err()
}

func (t devTacho) running() (bool, error) {
	state, err := t.m.State()
	if err != nil {
		return false, err
	}
	return state&ev3dev.Running != 0, nil
}

// TachoMotor is a tacho motor (large or medium servo) bound to a port.
type TachoMotor struct {
	port     robot.Port
	dev      tacho
	maxSpeed int
}

// portAddress returns the ev3dev address of an output port, e.g.
// "ev3-ports:outA".
func portAddress(port robot.Port) string {
	return "ev3-ports:out" + strings.ToUpper(string(port))
}

// FindMotor locates the tacho motor attached to port. A motor with a
// different driver than driver is still returned; the mismatch is reported
// through warn when warn is not nil.
func FindMotor(port robot.Port, driver string, warn func(error)) (*TachoMotor, error) {
	m, err := ev3dev.TachoMotorFor(portAddress(port), driver)
	if m == nil {
		if err == nil {
			err = errors.New("not found")
		}
		return nil, fmt.Errorf("no tacho motor on port %s: %w", port, err)
	}
	if err != nil && warn != nil {
		warn(err)
	}
	return newTachoMotor(port, devTacho{m: m})
}

func newTachoMotor(port robot.Port, dev tacho) (*TachoMotor, error) {
	maxSpeed, err := dev.maxSpeed()
	if err != nil {
		return nil, fmt.Errorf("motor %s: %w", port, err)
	}
	return &TachoMotor{port: port, dev: dev, maxSpeed: maxSpeed}, nil
}

// Port returns the output port the motor is attached to.
func (m *TachoMotor) Port() robot.Port {
	return m.port
}

// OnForSeconds runs the motor at speed percent for d using run-timed.
func (m *TachoMotor) OnForSeconds(speed int, d time.Duration, block bool) error {
	sp := robot.ClampSpeed(speed) * m.maxSpeed / robot.MaxSpeed
	if err := m.dev.runTimed(sp, d); err != nil {
		return fmt.Errorf("motor %s: %w", m.port, err)
	}

	if block {
		return m.waitUntilStopped(d + time.Second)
	}
	return nil
}

// Off brakes the motor.
func (m *TachoMotor) Off() error {
	if err := m.dev.brake(); err != nil {
		return fmt.Errorf("motor %s: %w", m.port, err)
	}
	return nil
}

func (m *TachoMotor) waitUntilStopped(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		running, err := m.dev.running()
		if err != nil {
			return fmt.Errorf("motor %s: %w", m.port, err)
		}
		if !running {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("motor %s: still running after %s", m.port, timeout)
		}
		time.Sleep(pollInterval)
	}
}

// missingMotor stands in for a port with nothing attached so the gadget can
// still start; every call reports the lookup error.
type missingMotor struct {
	err error
}

func (m missingMotor) OnForSeconds(int, time.Duration, bool) error { return m.err }
func (m missingMotor) Off() error                                  { return m.err }
