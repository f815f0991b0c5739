package companion

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-tablebot/pkg/gadget"
	"github.com/teslashibe/go-tablebot/pkg/link"
	"github.com/teslashibe/go-tablebot/pkg/protocol"
	"github.com/teslashibe/go-tablebot/pkg/robot"
)

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// startGadget serves a simulated gadget's companion link on a random port
// and returns its base URL.
func startGadget(t *testing.T) (string, *robot.Sim) {
	t.Helper()

	sim := robot.NewSim()
	g := gadget.New(robot.HardwareFrom(sim), gadget.Options{Sleep: noSleep})
	l := link.New(g, nil)
	g.Subscribe(l.Forward)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	l.RegisterRoutes(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	t.Cleanup(func() {
		l.Close()
		app.Shutdown()
	})

	return "http://" + ln.Addr().String(), sim
}

func dialGadget(t *testing.T, base string) *Client {
	t.Helper()
	wsURL, err := LinkURL(base, "test-companion")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, wsURL)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func withTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestLinkURL(t *testing.T) {
	tests := []struct {
		base    string
		id      string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "", "ws://localhost:8080/ws/companion", false},
		{"http://localhost:8080/", "phone", "ws://localhost:8080/ws/companion/phone", false},
		{"https://bot.example.com", "a b", "wss://bot.example.com/ws/companion/a%20b", false},
		{"ws://10.0.0.2:8080", "", "ws://10.0.0.2:8080/ws/companion", false},
		{"ftp://host", "", "", true},
		{"http://", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := LinkURL(tt.base, tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LinkURL(%q) error = %v, wantErr %v", tt.base, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("LinkURL(%q) = %v, want %v", tt.base, got, tt.want)
			}
		})
	}
}

func TestClient_DirectiveHandled(t *testing.T) {
	base, sim := startGadget(t)
	c := dialGadget(t, base)

	d, err := c.SendDirective(map[string]interface{}{
		"type": "move", "direction": "forward", "duration": 2, "speed": 50,
	})
	require.NoError(t, err)

	ev, err := c.WaitOutcome(withTimeout(t), d.Header.MessageID)
	require.NoError(t, err)
	assert.Equal(t, protocol.EventHandled, ev.Name)
	assert.Equal(t, "move", ev.Detail)

	var runs []robot.Action
	for _, a := range sim.Actions() {
		if a.Kind == robot.ActionMotorRun {
			runs = append(runs, a)
		}
	}
	require.Len(t, runs, 1)
	assert.Equal(t, 50, runs[0].Speed)
	assert.Equal(t, 2*time.Second, runs[0].Duration)
}

func TestClient_DirectiveDropped(t *testing.T) {
	base, _ := startGadget(t)
	c := dialGadget(t, base)

	d, err := c.SendDirective(json.RawMessage(`{"type":"move","direction":"forward"}`))
	require.NoError(t, err)

	ev, err := c.WaitOutcome(withTimeout(t), d.Header.MessageID)
	require.NoError(t, err)
	assert.Equal(t, protocol.EventDropped, ev.Name)
}

func TestClient_PingAndStatus(t *testing.T) {
	base, _ := startGadget(t)
	c := dialGadget(t, base)

	require.NoError(t, c.Ping("p-1"))
	msg, err := c.WaitFor(withTimeout(t), func(m *protocol.Message) bool { return m.Type == protocol.TypePong })
	require.NoError(t, err)
	pong, err := msg.GetPongData()
	require.NoError(t, err)
	assert.Equal(t, "p-1", pong.ID)

	require.NoError(t, c.RequestStatus())
	msg, err = c.WaitFor(withTimeout(t), func(m *protocol.Message) bool { return m.Type == protocol.TypeStatus })
	require.NoError(t, err)
	status, err := msg.GetStatusData()
	require.NoError(t, err)
	assert.Equal(t, gadget.DefaultName, status.Name)
	assert.True(t, status.Connected)
}

func TestClient_ReadTimeout(t *testing.T) {
	base, _ := startGadget(t)
	c := dialGadget(t, base)

	// Drain the connect events first.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	for {
		if _, err := c.Read(ctx); err != nil {
			assert.True(t, errors.Is(err, context.DeadlineExceeded), "err = %v", err)
			return
		}
	}
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, "ws://127.0.0.1:1/ws/companion")
	assert.Error(t, err)
}

func TestHTTPClient_PostDirective(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/directive", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		json.NewDecoder(r.Body).Decode(&gotBody)

		if gotBody["type"] == "deliver" && gotBody["spice"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"missing field spice","directive":"d-2"}`))
			return
		}
		w.Write([]byte(`{"status":"handled","directive":"d-1","state":"idle"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL + "/")

	res, err := c.PostDirective(context.Background(), map[string]interface{}{
		"type": "move", "direction": "stop", "duration": 0, "speed": 0,
	})
	require.NoError(t, err)
	assert.Equal(t, &Result{Status: "handled", Directive: "d-1", State: "idle"}, res)
	assert.Equal(t, "stop", gotBody["direction"])

	res, err = c.PostDirective(context.Background(), map[string]interface{}{
		"type": "deliver", "direction": "forward", "duration": 0, "speed": 0, "spice": "",
	})
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusBadRequest, rejected.StatusCode)
	assert.Equal(t, "missing field spice", rejected.Result.Error)
	assert.Equal(t, "d-2", res.Directive)
}

func TestHTTPClient_PlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream gone", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).PostDirective(context.Background(), map[string]string{"type": "move"})
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusBadGateway, rejected.StatusCode)
	assert.Equal(t, "upstream gone", rejected.Result.Error)
}

func TestHTTPClient_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(protocol.StatusData{Name: "TableBot", State: "idle", Handled: 4})
	}))
	defer srv.Close()

	status, err := NewHTTPClient(srv.URL).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TableBot", status.Name)
	assert.Equal(t, uint64(4), status.Handled)
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewHTTPClient(srv.URL)
	c.Timeout = 50 * time.Millisecond

	_, err := c.Status(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
