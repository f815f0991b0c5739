// Package gadget implements the table-service robot: it owns the actuators,
// reacts to the companion connection, and turns control directives into
// motor, LED and sound actions one at a time.
package gadget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"

	"github.com/teslashibe/go-tablebot/internal/log"
	"github.com/teslashibe/go-tablebot/pkg/command"
	"github.com/teslashibe/go-tablebot/pkg/deliver"
	"github.com/teslashibe/go-tablebot/pkg/metrics"
	"github.com/teslashibe/go-tablebot/pkg/protocol"
	"github.com/teslashibe/go-tablebot/pkg/robot"
	"github.com/teslashibe/go-tablebot/pkg/sound"
)

// DefaultName is used when Options.Name is empty.
const DefaultName = "TableBot"

var (
	// ErrNotControl is returned for directives addressed to another interface.
	ErrNotControl = errors.New("not a control directive")

	// ErrNoDaemon is returned by DaemonStatus for backends without a daemon.
	ErrNoDaemon = errors.New("backend has no daemon")
)

// Listener receives gadget events. Listeners are called synchronously and
// must not block or call back into actuating methods.
type Listener func(protocol.Event)

// Options configures a Gadget.
type Options struct {
	// Name appears in logs and status.
	Name string

	// Pause after each deliver motor step. Zero means deliver.DefaultPause.
	Pause time.Duration

	// Sleep overrides how deliver pauses wait. Nil uses deliver.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error

	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Gadget is the table-service robot.
type Gadget struct {
	name    string
	hw      robot.Hardware
	leds    *trackingLEDs
	seq     *deliver.Sequencer
	metrics *metrics.Metrics

	// mu is held for the whole handling of a directive so commands never
	// overlap, whichever transport delivered them.
	mu sync.Mutex

	lifecycle *fsm.FSM

	connected atomic.Bool
	patrol    atomic.Bool
	handled   atomic.Uint64
	dropped   atomic.Uint64
	last      atomic.Int64

	listenerMu sync.RWMutex
	listeners  map[int]Listener
	nextID     int
}

// New creates a gadget driving hw.
func New(hw robot.Hardware, opts Options) *Gadget {
	if opts.Name == "" {
		opts.Name = DefaultName
	}

	g := &Gadget{
		name:      opts.Name,
		metrics:   opts.Metrics,
		listeners: make(map[int]Listener),
	}

	g.leds = newTrackingLEDs(hw.LEDs)
	g.hw = robot.Hardware{
		Drive:     countingMotor{Motor: hw.Drive, name: "drive", metrics: opts.Metrics},
		Dispenser: countingMotor{Motor: hw.Dispenser, name: "dispense", metrics: opts.Metrics},
		LEDs:      g.leds,
		Speaker:   hw.Speaker,
		Status:    hw.Status,
	}

	g.seq = deliver.NewSequencer(g.hw)
	if opts.Pause > 0 {
		g.seq.Pause = opts.Pause
	}
	if opts.Sleep != nil {
		g.seq.Sleep = opts.Sleep
	}

	g.lifecycle = g.newLifecycle()
	g.metrics.SetState(StateDisconnected, States())
	return g
}

// Name returns the gadget name.
func (g *Gadget) Name() string {
	return g.name
}

// Subscribe registers l for gadget events and returns a function that
// removes it.
func (g *Gadget) Subscribe(l Listener) (unsubscribe func()) {
	g.listenerMu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = l
	g.listenerMu.Unlock()

	return func() {
		g.listenerMu.Lock()
		delete(g.listeners, id)
		g.listenerMu.Unlock()
	}
}

func (g *Gadget) emit(ev protocol.Event) {
	g.listenerMu.RLock()
	defer g.listenerMu.RUnlock()
	for _, l := range g.listeners {
		l(ev)
	}
}

// Startup plays the startup melody and turns the LEDs green.
func (g *Gadget) Startup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	log.Info("gadget starting", "name", g.name)
	if err := g.hw.Speaker.PlaySong(sound.Startup); err != nil {
		log.Error("startup song failed", "error", err)
	}
	g.setLEDs(robot.ColorGreen)
	g.emit(protocol.Event{Name: protocol.EventStartup, State: g.State()})
}

// Shutdown plays the shutdown melody and turns the LEDs off.
func (g *Gadget) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()

	log.Info("gadget shutting down", "name", g.name)
	if err := g.hw.Speaker.PlaySong(sound.Shutdown); err != nil {
		log.Error("shutdown song failed", "error", err)
	}
	g.setLEDs(robot.ColorBlack)
	g.emit(protocol.Event{Name: protocol.EventShutdown, State: g.State()})
}

// OnConnected is called when a companion attaches.
func (g *Gadget) OnConnected(addr string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.connected.Store(true)
	log.Info(fmt.Sprintf("%s connected to companion", g.name), "addr", addr)
	g.setLEDs(robot.ColorGreen)
	g.fire(eventConnect)
	g.emit(protocol.Event{Name: protocol.EventConnected, State: g.State(), Detail: addr})
}

// OnDisconnected is called when the last companion detaches.
func (g *Gadget) OnDisconnected(addr string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.connected.Store(false)
	log.Info(fmt.Sprintf("%s disconnected from companion", g.name), "addr", addr)
	g.setLEDs(robot.ColorBlack)
	g.fire(eventDisconnect)
	g.emit(protocol.Event{Name: protocol.EventDisconnected, State: g.State(), Detail: addr})
}

// HandleDirective parses and executes a control directive, blocking until
// the resulting actuation completes. A non-nil error means the directive
// was dropped, either before any actuation or because ctx ended part way
// through a delivery; the error has already been logged.
func (g *Gadget) HandleDirective(ctx context.Context, d *protocol.Directive) error {
	if !d.IsControl() {
		log.Debug("ignoring directive", "namespace", d.Header.Namespace, "name", d.Header.Name)
		g.metrics.Directive("", metrics.ResultIgnored)
		return fmt.Errorf("%w: %s.%s", ErrNotControl, d.Header.Namespace, d.Header.Name)
	}

	cmd, err := command.ParsePayload(d.Payload)
	if err != nil {
		return g.drop(d, cmd, err)
	}
	log.Info("Control payload", "directive", d.Header.MessageID, "payload", string(d.Payload))

	var runErr error
	switch cmd.Type {
	case command.TypeMove:
		runErr = g.Move(cmd.Direction, cmd.Duration, cmd.Speed)
	case command.TypeDeliver:
		runErr = g.Deliver(ctx, cmd.Condiment)
	}
	if runErr != nil {
		return g.drop(d, cmd, runErr)
	}

	g.handled.Add(1)
	g.last.Store(time.Now().UnixMilli())
	g.metrics.Directive(string(cmd.Type), metrics.ResultHandled)
	g.emit(protocol.Event{
		Name:      protocol.EventHandled,
		State:     g.State(),
		Directive: d.Header.MessageID,
		Detail:    string(cmd.Type),
	})
	return nil
}

func (g *Gadget) drop(d *protocol.Directive, cmd command.Command, err error) error {
	switch {
	case errors.Is(err, command.ErrUnknownType):
		log.Debug("unknown directive type", "error", err)
	case errors.Is(err, command.ErrMissingField):
		log.Warn("Missing expected parameters", "directive", d.Header.MessageID, "error", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn("directive interrupted", "directive", d.Header.MessageID, "type", string(cmd.Type), "error", err)
	default:
		log.Warn("dropping directive", "directive", d.Header.MessageID, "error", err)
	}

	g.dropped.Add(1)
	g.metrics.Directive(string(cmd.Type), metrics.ResultDropped)
	g.emit(protocol.Event{
		Name:      protocol.EventDropped,
		State:     g.State(),
		Directive: d.Header.MessageID,
		Detail:    err.Error(),
	})
	return err
}

// Move handles a move command. duration is in seconds and speed a signed
// percentage. Unknown direction tokens do nothing.
func (g *Gadget) Move(direction string, duration, speed int) error {
	dir, ok := command.ParseDirection(direction)
	if !ok {
		log.Debug("unknown direction", "direction", direction)
		return nil
	}

	log.Info("Move command", "direction", dir.String(), "speed", speed, "duration", duration, "blocking", false)
	return g.execute("move", func() error {
		d := time.Duration(duration) * time.Second
		var err error
		switch dir {
		case command.DirectionForward:
			err = g.hw.Drive.OnForSeconds(speed, d, false)
		case command.DirectionBackward:
			err = g.hw.Drive.OnForSeconds(-speed, d, false)
		case command.DirectionStop:
			err = g.hw.Drive.Off()
			g.patrol.Store(false)
		case command.DirectionLeft, command.DirectionRight:
			// The rack has a single drive motor; there is nothing to steer.
			log.Debug("steering not supported", "direction", dir.String())
		}
		if err != nil {
			log.Error("move failed", "direction", dir.String(), "error", err)
		}
		return nil
	})
}

// Deliver runs the delivery sequence for a condiment name. The empty name
// does nothing.
func (g *Gadget) Deliver(ctx context.Context, condiment string) error {
	c, ok := command.ParseCondiment(condiment)
	if !ok {
		log.Warn("unknown condiment", "condiment", condiment)
		return fmt.Errorf("%w: %q", deliver.ErrUnknownCondiment, condiment)
	}

	return g.execute("deliver", func() error {
		return g.seq.Deliver(ctx, c)
	})
}

// execute holds the actuation lock and the executing state around fn.
func (g *Gadget) execute(kind string, fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.fire(eventBegin)
	start := time.Now()

	err := fn()

	g.metrics.ObserveActuation(kind, time.Since(start))
	if g.connected.Load() {
		g.fire(eventFinish)
	} else {
		g.fire(eventRelease)
	}
	return err
}

func (g *Gadget) setLEDs(color robot.Color) {
	for _, grp := range robot.LEDGroups() {
		if err := g.hw.LEDs.SetColor(grp, color); err != nil {
			log.Error("LED update failed", "group", grp, "color", color, "error", err)
		}
	}
}

// Patrol reports the patrol flag. Only STOP changes it.
func (g *Gadget) Patrol() bool {
	return g.patrol.Load()
}

// DaemonStatus asks the backend daemon for its state. It returns
// ErrNoDaemon when the backend drives the actuators directly.
func (g *Gadget) DaemonStatus(ctx context.Context) (string, error) {
	if g.hw.Status == nil {
		return "", ErrNoDaemon
	}
	return g.hw.Status.GetDaemonStatus(ctx)
}

// Status returns a snapshot of the gadget. It never waits for a running
// command.
func (g *Gadget) Status() protocol.StatusData {
	return protocol.StatusData{
		Name:          g.name,
		State:         g.State(),
		Connected:     g.connected.Load(),
		Patrol:        g.patrol.Load(),
		LEDs:          g.leds.snapshot(),
		Handled:       g.handled.Load(),
		Dropped:       g.dropped.Load(),
		LastDirective: g.last.Load(),
	}
}
