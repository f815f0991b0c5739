// Package mqttlink lets companions drive the gadget over MQTT.
//
// Directives arrive on <prefix>/<gadget>/directive and are run one at a time
// in arrival order. Gadget events are published to <prefix>/<gadget>/event
// and the latest status snapshot is retained on <prefix>/<gadget>/status.
package mqttlink

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/teslashibe/go-tablebot/internal/log"
	"github.com/teslashibe/go-tablebot/pkg/protocol"
)

// inboxSize bounds directives waiting for the gadget.
const inboxSize = 32

// outboxSize bounds events waiting to be published.
const outboxSize = 64

// Gadget is the part of the gadget the link drives.
type Gadget interface {
	HandleDirective(ctx context.Context, d *protocol.Directive) error
	Status() protocol.StatusData
}

// Link connects the gadget to an MQTT broker.
type Link struct {
	cfg    Config
	gadget Gadget
	cm     *autopaho.ConnectionManager

	inbox  chan []byte
	outbox chan protocol.Event
}

// New creates an MQTT link for g.
func New(cfg Config, g Gadget) (*Link, error) {
	setDefaultConfig(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}
	return &Link{
		cfg:    cfg,
		gadget: g,
		inbox:  make(chan []byte, inboxSize),
		outbox: make(chan protocol.Event, outboxSize),
	}, nil
}

// Run connects to the broker and serves until ctx is done.
func (l *Link) Run(ctx context.Context) error {
	brokerURL, _ := url.Parse(l.cfg.Broker) // Already validated

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     l.cfg.KeepAlive,
		CleanStartOnInitialConnection: true,
		ReconnectBackoff:              autopaho.NewConstantBackoff(3 * time.Second),
		ConnectTimeout:                l.cfg.ConnectTimeout,
		ConnectUsername:               l.cfg.Username,
		ConnectPassword:               []byte(l.cfg.Password),
		ClientConfig: paho.ClientConfig{
			ClientID:           l.cfg.ClientID,
			OnClientError:      l.onClientError,
			OnServerDisconnect: l.onServerDisconnect,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				l.router,
			},
		},
		OnConnectionUp: l.onConnectionUp,
		OnConnectError: l.onConnectError,
	}

	log.Info("starting MQTT link", "broker", l.cfg.Broker, "client_id", l.cfg.ClientID,
		"directives", l.cfg.DirectiveTopic())

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	l.cm = cm

	go l.publishLoop(ctx)
	l.directiveLoop(ctx)

	disconnectCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = cm.Disconnect(disconnectCtx)
	log.Info("MQTT link stopped")
	return nil
}

// Forward queues a gadget event for publishing. It never blocks; events are
// dropped when the broker cannot keep up.
func (l *Link) Forward(ev protocol.Event) {
	select {
	case l.outbox <- ev:
	default:
		log.Warn("mqtt event queue full, dropping event", "event", ev.Name)
	}
}

// directiveLoop runs queued directives in order until ctx is done.
func (l *Link) directiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-l.inbox:
			l.handlePayload(ctx, data)
		}
	}
}

func (l *Link) handlePayload(ctx context.Context, data []byte) {
	d, err := protocol.DecodeDirective(data)
	if err != nil {
		log.Warn("mqtt directive decode error", "error", err)
		return
	}
	// Errors are logged by the gadget and published through its events.
	l.gadget.HandleDirective(ctx, d)
}

// publishLoop publishes queued events and refreshes the retained status.
func (l *Link) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-l.outbox:
			if msg, err := protocol.NewEventMessage(ev); err == nil {
				l.publish(ctx, l.cfg.EventTopic(), false, msg)
			}
			if msg, err := protocol.NewStatusMessage(l.gadget.Status()); err == nil {
				l.publish(ctx, l.cfg.StatusTopic(), true, msg)
			}
		}
	}
}

func (l *Link) publish(ctx context.Context, topic string, retain bool, msg *protocol.Message) {
	payload, err := msg.Bytes()
	if err != nil {
		return
	}
	if _, err := l.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     1,
		Retain:  retain,
		Payload: payload,
	}); err != nil {
		log.Debug("mqtt publish failed", "topic", topic, "error", err)
	}
}

// --- Internal Callbacks ---

// onConnectionUp is called when the connection is established or
// re-established; the subscription is renewed every time.
func (l *Link) onConnectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	log.Info("MQTT connection established")

	topic := l.cfg.DirectiveTopic()
	if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: topic, QoS: 1},
		},
	}); err != nil {
		log.Error("MQTT subscribe failed", "topic", topic, "error", err)
		return
	}
	log.Info("subscribed to topic", "topic", topic)
}

func (l *Link) onConnectError(err error) {
	log.Error("MQTT connection failed, retrying", "error", err)
}

func (l *Link) onClientError(err error) {
	log.Error("MQTT client error", "error", err)
}

func (l *Link) onServerDisconnect(d *paho.Disconnect) {
	reason := ""
	if d.Properties != nil {
		reason = d.Properties.ReasonString
	}
	log.Warn("MQTT server requested disconnect", "reason", reason)
}

// router queues directives for the directive loop so the network reader is
// never blocked by a running command.
func (l *Link) router(p paho.PublishReceived) (bool, error) {
	if p.Packet.Topic != l.cfg.DirectiveTopic() {
		log.Debug("received message on unhandled topic", "topic", p.Packet.Topic)
		return true, nil
	}

	select {
	case l.inbox <- p.Packet.Payload:
	default:
		log.Warn("mqtt directive queue full, dropping directive", "topic", p.Packet.Topic)
	}
	return true, nil // Always acknowledge reception
}
