package gadget

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/teslashibe/go-tablebot/internal/log"
	"github.com/teslashibe/go-tablebot/pkg/protocol"
)

// Lifecycle states.
const (
	StateDisconnected = "disconnected"
	StateIdle         = "idle"
	StateExecuting    = "executing"
)

// Lifecycle events.
const (
	eventConnect    = "connect"
	eventDisconnect = "disconnect"
	eventBegin      = "begin"
	eventFinish     = "finish"  // executing → idle, companion attached
	eventRelease    = "release" // executing → disconnected, no companion
)

// States lists every lifecycle state.
func States() []string {
	return []string{StateDisconnected, StateIdle, StateExecuting}
}

func (g *Gadget) newLifecycle() *fsm.FSM {
	return fsm.NewFSM(
		StateDisconnected,
		fsm.Events{
			{Name: eventConnect, Src: []string{StateDisconnected}, Dst: StateIdle},
			{Name: eventDisconnect, Src: []string{StateIdle}, Dst: StateDisconnected},
			{Name: eventBegin, Src: []string{StateIdle, StateDisconnected}, Dst: StateExecuting},
			{Name: eventFinish, Src: []string{StateExecuting}, Dst: StateIdle},
			{Name: eventRelease, Src: []string{StateExecuting}, Dst: StateDisconnected},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debug("gadget state", "from", e.Src, "to", e.Dst, "event", e.Event)
				g.metrics.SetState(e.Dst, States())
				g.emit(protocol.Event{Name: protocol.EventState, State: e.Dst})
			},
		},
	)
}

// fire triggers a lifecycle event if the current state allows it.
func (g *Gadget) fire(event string) {
	if !g.lifecycle.Can(event) {
		log.Debug("gadget state unchanged", "event", event, "state", g.lifecycle.Current())
		return
	}
	if err := g.lifecycle.Event(context.Background(), event); err != nil {
		log.Warn("gadget state transition failed", "event", event, "error", err)
	}
}

// State returns the current lifecycle state.
func (g *Gadget) State() string {
	return g.lifecycle.Current()
}
