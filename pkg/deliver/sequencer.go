package deliver

import (
	"context"
	"fmt"
	"time"

	"github.com/teslashibe/go-tablebot/internal/log"
	"github.com/teslashibe/go-tablebot/pkg/command"
	"github.com/teslashibe/go-tablebot/pkg/robot"
	"github.com/teslashibe/go-tablebot/pkg/sound"
)

// DefaultPause is the settle time after each motor step.
const DefaultPause = 4 * time.Second

// Phrase is spoken once the condiment is delivered.
const Phrase = "Enjoy your meal"

// Sequencer runs delivery sequences on a set of actuators. It is not safe
// for concurrent use; callers serialise deliveries.
type Sequencer struct {
	hw robot.Hardware

	// Pause follows every motor step regardless of the step's duration.
	Pause time.Duration

	// Sleep waits for d or until ctx is done. Tests replace it to run
	// sequences instantly.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewSequencer creates a sequencer with the default pause.
func NewSequencer(hw robot.Hardware) *Sequencer {
	return &Sequencer{
		hw:    hw,
		Pause: DefaultPause,
		Sleep: Sleep,
	}
}

// Deliver runs the full sequence for condiment c and blocks until it
// finishes. CondimentNone is a no-op. Actuator errors are logged and the
// sequence carries on; the only errors returned are ErrUnknownCondiment and
// the context error when ctx ends during a pause. An interrupted sequence
// skips the remaining steps but still leaves the LEDs green.
func (s *Sequencer) Deliver(ctx context.Context, c command.Condiment) error {
	if c == command.CondimentNone {
		log.Debug("deliver: no condiment selected")
		return nil
	}
	p, ok := Lookup(c)
	if !ok {
		log.Warn("deliver: unknown condiment", "condiment", string(c))
		return fmt.Errorf("%w: %q", ErrUnknownCondiment, string(c))
	}

	log.Info("deliver: starting", "condiment", string(c))
	start := time.Now()

	s.setLEDs(robot.ColorOrange)

	steps := []struct {
		name  string
		motor robot.Motor
		speed int
		d     time.Duration
	}{
		{"position", s.hw.Drive, -p.PositionSpeed, p.PositionDuration},
		{"dispense", s.hw.Dispenser, p.DispenseSpeed, p.DispenseDuration},
		{"retract", s.hw.Dispenser, -p.DispenseSpeed, p.DispenseDuration},
		{"return", s.hw.Drive, p.PositionSpeed, p.PositionDuration},
	}
	for _, st := range steps {
		if err := st.motor.OnForSeconds(st.speed, st.d, false); err != nil {
			log.Error("deliver: motor step failed", "step", st.name, "error", err)
		}
		if err := s.sleep(ctx, s.Pause); err != nil {
			log.Warn("deliver: interrupted", "step", st.name, "error", err)
			s.setLEDs(robot.ColorGreen)
			return err
		}
	}

	if err := s.hw.Speaker.PlaySong(sound.Delivered); err != nil {
		log.Error("deliver: song failed", "error", err)
	}
	if err := s.hw.Speaker.Speak(Phrase); err != nil {
		log.Error("deliver: speech failed", "error", err)
	}

	s.setLEDs(robot.ColorGreen)

	log.Info("deliver: done", "condiment", string(c), "elapsed", time.Since(start))
	return nil
}

func (s *Sequencer) setLEDs(color robot.Color) {
	for _, g := range robot.LEDGroups() {
		if err := s.hw.LEDs.SetColor(g, color); err != nil {
			log.Error("deliver: LED update failed", "group", g, "color", color, "error", err)
		}
	}
}

func (s *Sequencer) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep == nil {
		return Sleep(ctx, d)
	}
	return s.Sleep(ctx, d)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
