package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewControlDirective builds a Control directive around payload. payload may
// be raw JSON bytes or any value that marshals to the control object.
func NewControlDirective(payload interface{}) (*Directive, error) {
	var raw json.RawMessage
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = json.RawMessage(p)
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal directive payload: %w", err)
		}
		raw = b
	}

	return &Directive{
		Header: Header{
			Namespace: Namespace,
			Name:      NameControl,
			MessageID: uuid.NewString(),
		},
		Payload: raw,
	}, nil
}

// NewDirectiveMessage wraps a directive in a message envelope
func NewDirectiveMessage(d *Directive) (*Message, error) {
	return NewMessage(TypeDirective, d)
}

// NewEventMessage creates an event message
func NewEventMessage(ev Event) (*Message, error) {
	return NewMessage(TypeEvent, ev)
}

// NewStatusMessage creates a status message
func NewStatusMessage(status StatusData) (*Message, error) {
	return NewMessage(TypeStatus, status)
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	msg, err := NewMessage(TypePing, nil)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(PingData{ID: id, Timestamp: msg.Timestamp})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message data: %w", err)
	}
	msg.Data = data
	return msg, nil
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetDirective extracts a directive from a message
func (m *Message) GetDirective() (*Directive, error) {
	var data Directive
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetEvent extracts an event from a message
func (m *Message) GetEvent() (*Event, error) {
	var data Event
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStatusData extracts a status snapshot from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeDirective accepts any of the shapes a transport may carry: a
// directive message envelope, a bare directive with a header, or a bare
// control payload. Bodies that are not JSON objects are wrapped as control
// payloads so the gadget reports them as malformed.
func DecodeDirective(data []byte) (*Directive, error) {
	raw := json.RawMessage(append([]byte(nil), data...))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return NewControlDirective(raw)
	}

	if t, ok := fields["type"]; ok && string(t) == `"`+string(TypeDirective)+`"` {
		msg, err := ParseMessage(data)
		if err != nil {
			return nil, err
		}
		d, err := msg.GetDirective()
		if err != nil {
			return nil, fmt.Errorf("failed to parse directive: %w", err)
		}
		if d.Header.MessageID == "" {
			d.Header.MessageID = msg.ID
		}
		if d.Header.MessageID == "" {
			d.Header.MessageID = uuid.NewString()
		}
		return d, nil
	}

	if _, ok := fields["header"]; ok {
		var d Directive
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to parse directive: %w", err)
		}
		if d.Header.MessageID == "" {
			d.Header.MessageID = uuid.NewString()
		}
		return &d, nil
	}

	return NewControlDirective(raw)
}
