package robot

import (
	"sync"
	"time"

	"github.com/teslashibe/go-tablebot/internal/log"
	"github.com/teslashibe/go-tablebot/pkg/sound"
)

// Action kinds recorded by Sim.
const (
	ActionMotorRun = "motor.run"
	ActionMotorOff = "motor.off"
	ActionLED      = "led.set"
	ActionSong     = "sound.song"
	ActionSpeak    = "sound.speak"
)

// Action is one actuator call observed by Sim.
type Action struct {
	Kind     string
	Port     Port          `json:",omitempty"`
	Speed    int           `json:",omitempty"`
	Duration time.Duration `json:",omitempty"`
	Block    bool          `json:",omitempty"`
	Group    LEDGroup      `json:",omitempty"`
	Color    Color         `json:",omitempty"`
	Text     string        `json:",omitempty"`
}

// Sim is an in-memory brick. It logs and records every actuator call and
// never sleeps, so it doubles as the test backend.
type Sim struct {
	mu      sync.Mutex
	actions []Action
	leds    map[LEDGroup]Color

	// Fail, when set, is consulted before recording each action. A non-nil
	// return is handed back to the caller and the action is not recorded.
	Fail func(a Action) error
}

// NewSim creates a simulated brick with both LEDs off.
func NewSim() *Sim {
	return &Sim{
		leds: map[LEDGroup]Color{
			LEDLeft:  ColorBlack,
			LEDRight: ColorBlack,
		},
	}
}

// Motor returns the motor on port.
func (s *Sim) Motor(port Port) Motor {
	return &simMotor{sim: s, port: port}
}

// SetColor records an LED change.
func (s *Sim) SetColor(group LEDGroup, color Color) error {
	if err := s.record(Action{Kind: ActionLED, Group: group, Color: color}); err != nil {
		return err
	}
	s.mu.Lock()
	s.leds[group] = color
	s.mu.Unlock()
	return nil
}

// PlaySong records a melody.
func (s *Sim) PlaySong(song sound.Song) error {
	return s.record(Action{Kind: ActionSong, Text: song.String()})
}

// Speak records a phrase.
func (s *Sim) Speak(text string) error {
	return s.record(Action{Kind: ActionSpeak, Text: text})
}

// Color returns the current colour of an LED group.
func (s *Sim) Color(group LEDGroup) Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leds[group]
}

// Actions returns a copy of every recorded action.
func (s *Sim) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Action(nil), s.actions...)
}

// Reset clears the action log. LED colours are kept.
func (s *Sim) Reset() {
	s.mu.Lock()
	s.actions = nil
	s.mu.Unlock()
}

func (s *Sim) record(a Action) error {
	if s.Fail != nil {
		if err := s.Fail(a); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.actions = append(s.actions, a)
	s.mu.Unlock()

	log.Debug("sim actuator", "kind", a.Kind, "port", a.Port, "speed", a.Speed,
		"duration", a.Duration, "group", a.Group, "color", a.Color, "text", a.Text)
	return nil
}

type simMotor struct {
	sim  *Sim
	port Port
}

func (m *simMotor) OnForSeconds(speed int, d time.Duration, block bool) error {
	return m.sim.record(Action{
		Kind:     ActionMotorRun,
		Port:     m.port,
		Speed:    ClampSpeed(speed),
		Duration: d,
		Block:    block,
	})
}

func (m *simMotor) Off() error {
	return m.sim.record(Action{Kind: ActionMotorOff, Port: m.port})
}
