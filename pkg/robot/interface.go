// Package robot provides interfaces and implementations for the table-service
// gadget's actuators.
//
// This package follows the Interface Segregation Principle (ISP) by defining
// small, focused interfaces that can be composed as needed. Consumers should
// depend only on the interfaces they actually use.
package robot

import (
	"context"
	"time"

	"github.com/teslashibe/go-tablebot/pkg/sound"
)

// Port identifies a motor output port on the brick.
type Port string

const (
	PortA Port = "A"
	PortB Port = "B"
	PortC Port = "C"
	PortD Port = "D"
)

// Ports used by the gadget.
const (
	DrivePort    = PortA // conveyor band that positions the condiment rack
	DispensePort = PortB // dispensing arm
)

// LEDGroup identifies one of the two status LEDs.
type LEDGroup string

const (
	LEDLeft  LEDGroup = "LEFT"
	LEDRight LEDGroup = "RIGHT"
)

// LEDGroups lists both LED groups.
func LEDGroups() []LEDGroup {
	return []LEDGroup{LEDLeft, LEDRight}
}

// Color is an LED colour name.
type Color string

const (
	ColorBlack  Color = "BLACK"
	ColorRed    Color = "RED"
	ColorGreen  Color = "GREEN"
	ColorAmber  Color = "AMBER"
	ColorOrange Color = "ORANGE"
	ColorYellow Color = "YELLOW"
)

// MaxSpeed is the largest speed percentage a motor accepts.
const MaxSpeed = 100

// ClampSpeed restricts a speed percentage to [-MaxSpeed, MaxSpeed].
func ClampSpeed(speed int) int {
	if speed > MaxSpeed {
		return MaxSpeed
	}
	if speed < -MaxSpeed {
		return -MaxSpeed
	}
	return speed
}

// Motor runs a single motor for timed pulses.
type Motor interface {
	// OnForSeconds runs the motor at speed percent for d. A negative speed
	// reverses the motor. When block is false the call returns as soon as
	// the command is issued.
	OnForSeconds(speed int, d time.Duration, block bool) error

	// Off stops the motor immediately.
	Off() error
}

// LEDController sets the status LEDs.
type LEDController interface {
	SetColor(group LEDGroup, color Color) error
}

// Speaker plays melodies and speech.
type Speaker interface {
	PlaySong(song sound.Song) error
	Speak(text string) error
}

// StatusController provides backend status queries.
type StatusController interface {
	GetDaemonStatus(ctx context.Context) (string, error)
}

// Brick is the composite interface a backend implements to drive a
// complete gadget.
type Brick interface {
	Motor(port Port) Motor
	LEDController
	Speaker
}

// Hardware is the set of actuators the gadget drives.
type Hardware struct {
	Drive     Motor
	Dispenser Motor
	LEDs      LEDController
	Speaker   Speaker

	// Status is nil for backends that have no daemon to ask.
	Status StatusController
}

// HardwareFrom wires the gadget's ports on a brick.
func HardwareFrom(b Brick) Hardware {
	hw := Hardware{
		Drive:     b.Motor(DrivePort),
		Dispenser: b.Motor(DispensePort),
		LEDs:      b,
		Speaker:   b,
	}
	if sc, ok := b.(StatusController); ok {
		hw.Status = sc
	}
	return hw
}

// Ensure backends implement Brick
var (
	_ Brick            = (*HTTPController)(nil)
	_ StatusController = (*HTTPController)(nil)
	_ Brick            = (*Sim)(nil)
)
