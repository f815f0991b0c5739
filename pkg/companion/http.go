package companion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-tablebot/internal/httpc"
	"github.com/teslashibe/go-tablebot/pkg/protocol"
)

// DirectiveTimeout bounds a POST /api/directive round trip. The server
// answers only after the actuation, and a delivery pauses between steps.
const DirectiveTimeout = 60 * time.Second

// Result is the server's answer to a directive.
type Result struct {
	Status    string `json:"status,omitempty"`
	Directive string `json:"directive,omitempty"`
	State     string `json:"state,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RejectedError is returned when the server refused or dropped a directive.
type RejectedError struct {
	StatusCode int
	Result     Result
}

func (e *RejectedError) Error() string {
	if e.Result.Error != "" {
		return fmt.Sprintf("directive rejected (%d): %s", e.StatusCode, e.Result.Error)
	}
	return fmt.Sprintf("directive rejected (%d)", e.StatusCode)
}

// HTTPClient talks to the gadget's HTTP API through the shared httpc client.
type HTTPClient struct {
	BaseURL string

	// Timeout bounds each request.
	Timeout time.Duration
}

// NewHTTPClient creates a client for the server at baseURL, e.g.
// "http://tablebot.local:8080".
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: DirectiveTimeout,
	}
}

// PostDirective sends payload as a bare control payload and waits for the
// gadget to finish with it.
func (c *HTTPClient) PostDirective(ctx context.Context, payload interface{}) (*Result, error) {
	resp, err := httpc.PostJSON(ctx, c.BaseURL+"/api/directive", payload, c.Timeout)
	if err != nil {
		return nil, fmt.Errorf("directive request failed: %w", err)
	}

	var result Result
	if err := json.Unmarshal(resp.Body, &result); err != nil && resp.OK() {
		return nil, fmt.Errorf("failed to decode directive response: %w", err)
	}
	if !resp.OK() {
		if result.Error == "" {
			result.Error = strings.TrimSpace(string(resp.Body))
		}
		return &result, &RejectedError{StatusCode: resp.StatusCode, Result: result}
	}
	return &result, nil
}

// Status fetches the gadget status snapshot.
func (c *HTTPClient) Status(ctx context.Context) (*protocol.StatusData, error) {
	resp, err := httpc.Get(ctx, c.BaseURL+"/api/status", c.Timeout)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status request failed: %s", resp.Status)
	}

	var status protocol.StatusData
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &status, nil
}
