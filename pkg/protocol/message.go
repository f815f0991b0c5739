// Package protocol defines the JSON message envelope exchanged between the
// gadget and its companions (WebSocket link, MQTT, dashboard stream).
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the type of message
type MessageType string

const (
	// Companion → Gadget messages
	TypeDirective MessageType = "directive" // Control directive

	// Gadget → Companion messages
	TypeEvent  MessageType = "event"  // Lifecycle or directive outcome
	TypeStatus MessageType = "status" // Status snapshot

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all messages
type Message struct {
	ID        string          `json:"id,omitempty"`
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with a fresh ID and the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Companion → Gadget Message Types
// =============================================================================

// Directive namespace and name understood by the gadget.
const (
	Namespace   = "Custom.Mindstorms.Gadget"
	NameControl = "Control"
)

// Header addresses a directive to a gadget interface.
type Header struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	MessageID string `json:"messageId,omitempty"`
}

// Directive carries a control payload for the gadget. The payload is kept
// raw and decoded by the command interpreter.
type Directive struct {
	Header  Header          `json:"header"`
	Payload json.RawMessage `json:"payload"`
}

// IsControl reports whether the directive targets the gadget's control
// interface. The name comparison ignores case.
func (d *Directive) IsControl() bool {
	return d.Header.Namespace == Namespace && strings.EqualFold(d.Header.Name, NameControl)
}

// =============================================================================
// Gadget → Companion Message Types
// =============================================================================

// Event names emitted by the gadget.
const (
	EventStartup      = "startup"
	EventShutdown     = "shutdown"
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventState        = "state"
	EventHandled      = "directive.handled"
	EventDropped      = "directive.dropped"
)

// Event reports a lifecycle change or the outcome of a directive.
type Event struct {
	Name      string `json:"name"`
	State     string `json:"state,omitempty"`
	Directive string `json:"directive,omitempty"` // directive message ID
	Detail    string `json:"detail,omitempty"`
}

// StatusData is a snapshot of the gadget.
type StatusData struct {
	Name          string            `json:"name"`
	State         string            `json:"state"`
	Connected     bool              `json:"connected"`
	Patrol        bool              `json:"patrol"`
	LEDs          map[string]string `json:"leds"`
	Handled       uint64            `json:"handled"`
	Dropped       uint64            `json:"dropped"`
	LastDirective int64             `json:"last_directive,omitempty"` // Unix milliseconds
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
