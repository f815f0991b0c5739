package robot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/go-tablebot/internal/httpc"
	"github.com/teslashibe/go-tablebot/pkg/sound"
)

// DefaultDaemonTimeout bounds every daemon request. Blocking motor runs and
// songs add their own duration on top.
const DefaultDaemonTimeout = 2 * time.Second

// HTTPController implements Brick using a gadget daemon's HTTP API.
// Use it when the brick runs a small daemon and the controller runs elsewhere.
// Requests go through the shared httpc client.
type HTTPController struct {
	BaseURL string

	// Timeout bounds a single request before any per-call extension.
	Timeout time.Duration
}

// NewHTTPController creates a new HTTP-based brick controller.
// baseURL is the daemon root, e.g. "http://192.168.1.20:8000".
func NewHTTPController(baseURL string) *HTTPController {
	return &HTTPController{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: DefaultDaemonTimeout,
	}
}

// Motor returns the motor on port.
func (r *HTTPController) Motor(port Port) Motor {
	return &httpMotor{ctrl: r, port: port}
}

// SetColor sets one LED group.
func (r *HTTPController) SetColor(group LEDGroup, color Color) error {
	path := "/api/leds/" + strings.ToLower(string(group))
	return r.post(path, map[string]interface{}{
		"color": color,
	}, 0)
}

// PlaySong asks the daemon to play a melody. The daemon renders the notes.
func (r *HTTPController) PlaySong(song sound.Song) error {
	length, err := song.Length(sound.DefaultTempo, sound.DefaultGap)
	if err != nil {
		return fmt.Errorf("invalid song: %w", err)
	}
	return r.post("/api/sound/song", map[string]interface{}{
		"notes": song,
		"tempo": sound.DefaultTempo,
		"gap":   sound.DefaultGap.Seconds(),
	}, length)
}

// Speak asks the daemon to speak text.
func (r *HTTPController) Speak(text string) error {
	return r.post("/api/sound/speak", map[string]interface{}{
		"text": text,
	}, 0)
}

// GetDaemonStatus returns the gadget daemon's reported state.
func (r *HTTPController) GetDaemonStatus(ctx context.Context) (string, error) {
	resp, err := httpc.Get(ctx, r.BaseURL+"/api/daemon/status", r.Timeout)
	if err != nil {
		return "", fmt.Errorf("daemon status request failed: %w", err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("daemon status: daemon returned %s", resp.Status)
	}

	var status struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return "", fmt.Errorf("failed to decode daemon status: %w", err)
	}

	return status.State, nil
}

// post sends a JSON command to the daemon API. extra extends the request
// deadline for calls the daemon answers only after finishing.
func (r *HTTPController) post(path string, payload map[string]interface{}, extra time.Duration) error {
	resp, err := httpc.PostJSON(context.Background(), r.BaseURL+path, payload, r.Timeout+extra)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%s: daemon returned %s: %s", path, resp.Status, strings.TrimSpace(string(resp.Body)))
	}
	return nil
}

type httpMotor struct {
	ctrl *HTTPController
	port Port
}

func (m *httpMotor) OnForSeconds(speed int, d time.Duration, block bool) error {
	var extra time.Duration
	if block {
		extra = d
	}
	return m.ctrl.post(m.path("run"), map[string]interface{}{
		"speed":    ClampSpeed(speed),
		"duration": d.Seconds(),
		"block":    block,
	}, extra)
}

func (m *httpMotor) Off() error {
	return m.ctrl.post(m.path("off"), map[string]interface{}{
		"brake": true,
	}, 0)
}

func (m *httpMotor) path(action string) string {
	return fmt.Sprintf("/api/motor/%s/%s", strings.ToLower(string(m.port)), action)
}
