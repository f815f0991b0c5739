package gadget

import (
	"sync"
	"time"

	"github.com/teslashibe/go-tablebot/pkg/metrics"
	"github.com/teslashibe/go-tablebot/pkg/robot"
)

// countingMotor counts motor commands per motor.
type countingMotor struct {
	robot.Motor
	name    string
	metrics *metrics.Metrics
}

func (m countingMotor) OnForSeconds(speed int, d time.Duration, block bool) error {
	m.metrics.MotorCommand(m.name)
	return m.Motor.OnForSeconds(speed, d, block)
}

func (m countingMotor) Off() error {
	m.metrics.MotorCommand(m.name)
	return m.Motor.Off()
}

// trackingLEDs remembers the last colour successfully set on each group.
type trackingLEDs struct {
	robot.LEDController

	mu     sync.RWMutex
	colors map[robot.LEDGroup]robot.Color
}

func newTrackingLEDs(leds robot.LEDController) *trackingLEDs {
	return &trackingLEDs{
		LEDController: leds,
		colors: map[robot.LEDGroup]robot.Color{
			robot.LEDLeft:  robot.ColorBlack,
			robot.LEDRight: robot.ColorBlack,
		},
	}
}

func (l *trackingLEDs) SetColor(group robot.LEDGroup, color robot.Color) error {
	if err := l.LEDController.SetColor(group, color); err != nil {
		return err
	}
	l.mu.Lock()
	l.colors[group] = color
	l.mu.Unlock()
	return nil
}

func (l *trackingLEDs) snapshot() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]string, len(l.colors))
	for g, c := range l.colors {
		out[string(g)] = string(c)
	}
	return out
}
