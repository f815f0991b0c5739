package ev3

import (
	"fmt"
	"math"

	"github.com/ev3go/ev3dev"

	"github.com/teslashibe/go-tablebot/pkg/robot"
)

// mix is the red/green intensity pair that produces a colour on the
// bi-colour brick LEDs.
type mix struct {
	red, green float64
}

var colorMixes = map[robot.Color]mix{
	robot.ColorBlack:  {0, 0},
	robot.ColorRed:    {1, 0},
	robot.ColorGreen:  {0, 1},
	robot.ColorAmber:  {1, 1},
	robot.ColorOrange: {1, 0.5},
	robot.ColorYellow: {0.1, 1},
}

var ledPrefix = map[robot.LEDGroup]string{
	robot.LEDLeft:  "led0",
	robot.LEDRight: "led1",
}

// ledChannel is one colour channel of a status LED.
type ledChannel interface {
	maxBrightness() (int, error)
	setBrightness(v int) error
}

type ledName string

func (n ledName) String() string { return string(n) }

// devLED drives a channel through the ev3dev leds class.
type devLED struct {
	l *ev3dev.LED
}

func (d devLED) maxBrightness() (int, error) {
	return d.l.MaxBrightness()
}

func (d devLED) setBrightness(v int) error {
	return d.l.SetBrightness(v).Err()
}

// LEDs drives the two bi-colour status LEDs.
type LEDs struct {
	channel func(name string) ledChannel
}

// NewLEDs returns the driver for the brick's status LEDs.
func NewLEDs() *LEDs {
	return &LEDs{channel: func(name string) ledChannel {
		return devLED{l: &ev3dev.LED{Name: ledName(name)}}
	}}
}

// SetColor sets an LED group to a named colour.
func (l *LEDs) SetColor(group robot.LEDGroup, color robot.Color) error {
	prefix, ok := ledPrefix[group]
	if !ok {
		return fmt.Errorf("unknown LED group %q", group)
	}
	m, ok := colorMixes[color]
	if !ok {
		return fmt.Errorf("unknown LED color %q", color)
	}

	if err := l.set(prefix+":red:brick-status", m.red); err != nil {
		return err
	}
	return l.set(prefix+":green:brick-status", m.green)
}

func (l *LEDs) set(name string, level float64) error {
	ch := l.channel(name)
	max, err := ch.maxBrightness()
	if err != nil {
		return fmt.Errorf("led %s: %w", name, err)
	}
	if err := ch.setBrightness(int(math.Round(level * float64(max)))); err != nil {
		return fmt.Errorf("led %s: %w", name, err)
	}
	return nil
}
