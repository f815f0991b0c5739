package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-tablebot/pkg/gadget"
	"github.com/teslashibe/go-tablebot/pkg/protocol"
	"github.com/teslashibe/go-tablebot/pkg/robot"
	"github.com/teslashibe/go-tablebot/pkg/web"
)

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// startServer runs a simulated gadget's web server on a random port.
func startServer(t *testing.T) (string, *robot.Sim) {
	t.Helper()

	sim := robot.NewSim()
	g := gadget.New(robot.HardwareFrom(sim), gadget.Options{Sleep: noSleep})
	s := web.NewServer("127.0.0.1:0", g, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.App().Listener(ln)
	t.Cleanup(func() {
		s.Link().Close()
		s.App().Shutdown()
	})

	return "http://" + ln.Addr().String(), sim
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(append(args, "--timeout=5s"))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func motorRuns(sim *robot.Sim) []robot.Action {
	var runs []robot.Action
	for _, a := range sim.Actions() {
		if a.Kind == robot.ActionMotorRun {
			runs = append(runs, a)
		}
	}
	return runs
}

func TestPayloads(t *testing.T) {
	assert.Equal(t, map[string]interface{}{
		"type": "move", "direction": "backward", "duration": 3, "speed": 20,
	}, movePayload("backward", 3, 20))

	assert.Equal(t, map[string]interface{}{
		"type": "deliver", "direction": "forward", "duration": 0, "speed": 0, "spice": "lemon",
	}, deliverPayload("lemon"))
}

func TestMove_HTTP(t *testing.T) {
	base, sim := startServer(t)

	out, err := execute(t, "--server", base, "--transport", "http", "move", "forward", "-d", "2", "--speed", "30")
	require.NoError(t, err)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "handled", res["status"])

	runs := motorRuns(sim)
	require.Len(t, runs, 1)
	assert.Equal(t, 30, runs[0].Speed)
	assert.Equal(t, 2*time.Second, runs[0].Duration)
}

func TestDeliver_WS(t *testing.T) {
	base, sim := startServer(t)

	out, err := execute(t, "--server", base, "deliver", "salt")
	require.NoError(t, err)

	var ev protocol.Event
	require.NoError(t, json.Unmarshal([]byte(out), &ev))
	assert.Equal(t, protocol.EventHandled, ev.Name)
	assert.Equal(t, "deliver", ev.Detail)
	assert.Len(t, motorRuns(sim), 4)
}

func TestDeliver_UnknownCondiment(t *testing.T) {
	base, sim := startServer(t)

	_, err := execute(t, "--server", base, "deliver", "ketchup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dropped")
	assert.Empty(t, motorRuns(sim))

	_, err = execute(t, "--server", base, "--transport", "http", "deliver", "ketchup")
	assert.Error(t, err)
}

func TestStop(t *testing.T) {
	base, sim := startServer(t)

	_, err := execute(t, "--server", base, "stop")
	require.NoError(t, err)

	var offs int
	for _, a := range sim.Actions() {
		if a.Kind == robot.ActionMotorOff {
			offs++
		}
	}
	assert.Equal(t, 1, offs)
}

func TestStatus(t *testing.T) {
	base, _ := startServer(t)

	for _, transport := range []string{transportWS, transportHTTP} {
		t.Run(transport, func(t *testing.T) {
			out, err := execute(t, "--server", base, "--transport", transport, "status")
			require.NoError(t, err)

			var status protocol.StatusData
			require.NoError(t, json.Unmarshal([]byte(out), &status))
			assert.Equal(t, gadget.DefaultName, status.Name)
		})
	}
}

func TestUnknownTransport(t *testing.T) {
	_, err := execute(t, "--transport", "carrier-pigeon", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}
