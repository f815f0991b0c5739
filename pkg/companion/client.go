// Package companion is the client side of the gadget's control surfaces: the
// companion WebSocket link and the HTTP directive endpoint.
package companion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-tablebot/pkg/protocol"
)

// Default timeouts for the WebSocket link.
const (
	HandshakeTimeout = 10 * time.Second
	WriteTimeout     = 5 * time.Second
)

// LinkURL returns the companion WebSocket URL for a gadget server.
// base may use http(s) or ws(s); id is optional.
func LinkURL(base, id string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server URL %q: unsupported scheme %s", base, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", base)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/companion"
	if id != "" {
		u.Path += "/" + id
	}
	return u.String(), nil
}

// Client is a companion connected over the WebSocket link.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

// Dial connects to the companion endpoint at wsURL.
func Dial(ctx context.Context, wsURL string) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("companion dial %s: %w", wsURL, err)
	}
	return &Client{conn: conn}, nil
}

// Send writes a message to the gadget.
func (c *Client) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// SendDirective wraps payload in a Control directive and sends it. The
// returned directive carries the message ID the gadget will report in its
// events.
func (c *Client) SendDirective(payload interface{}) (*protocol.Directive, error) {
	d, err := protocol.NewControlDirective(payload)
	if err != nil {
		return nil, err
	}
	msg, err := protocol.NewDirectiveMessage(d)
	if err != nil {
		return nil, err
	}
	if err := c.Send(msg); err != nil {
		return nil, fmt.Errorf("send directive: %w", err)
	}
	return d, nil
}

// Ping sends a ping; the gadget answers with a pong message.
func (c *Client) Ping(id string) error {
	msg, err := protocol.NewPingMessage(id)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// RequestStatus asks the gadget for a status snapshot.
func (c *Client) RequestStatus() error {
	msg, err := protocol.NewMessage(protocol.TypeStatus, nil)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// Read returns the next message from the gadget. The context deadline, if
// any, bounds the wait. A timed out read leaves the connection unusable.
func (c *Client) Read(ctx context.Context) (*protocol.Message, error) {
	deadline, _ := ctx.Deadline()
	c.conn.SetReadDeadline(deadline)

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	return protocol.ParseMessage(data)
}

// WaitFor reads messages until match accepts one.
func (c *Client) WaitFor(ctx context.Context, match func(*protocol.Message) bool) (*protocol.Message, error) {
	for {
		msg, err := c.Read(ctx)
		if err != nil {
			return nil, err
		}
		if match(msg) {
			return msg, nil
		}
	}
}

// WaitOutcome waits for the handled or dropped event of directive id.
func (c *Client) WaitOutcome(ctx context.Context, id string) (*protocol.Event, error) {
	var outcome *protocol.Event
	_, err := c.WaitFor(ctx, func(msg *protocol.Message) bool {
		if msg.Type != protocol.TypeEvent {
			return false
		}
		ev, err := msg.GetEvent()
		if err != nil || ev.Directive != id {
			return false
		}
		if ev.Name == protocol.EventHandled || ev.Name == protocol.EventDropped {
			outcome = ev
			return true
		}
		return false
	})
	return outcome, err
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
