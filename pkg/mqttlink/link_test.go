package mqttlink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/teslashibe/go-tablebot/pkg/protocol"
)

type fakeGadget struct {
	mu         sync.Mutex
	directives []*protocol.Directive
}

func (g *fakeGadget) HandleDirective(_ context.Context, d *protocol.Directive) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.directives = append(g.directives, d)
	return nil
}

func (g *fakeGadget) Status() protocol.StatusData {
	return protocol.StatusData{Name: "FakeBot"}
}

func (g *fakeGadget) received() []*protocol.Directive {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*protocol.Directive(nil), g.directives...)
}

func testConfig() Config {
	return Config{Broker: "mqtt://localhost:1883", Gadget: "tablebot"}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing broker", func(c *Config) { c.Broker = "" }, true},
		{"no scheme", func(c *Config) { c.Broker = "localhost:1883" }, true},
		{"missing gadget", func(c *Config) { c.Gadget = "" }, true},
		{"wildcard in gadget", func(c *Config) { c.Gadget = "bot/#" }, true},
		{"wildcard in prefix", func(c *Config) { c.TopicPrefix = "a+b" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			setDefaultConfig(&cfg)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Topics(t *testing.T) {
	cfg := testConfig()
	setDefaultConfig(&cfg)

	assert.Equal(t, "tablebot/tablebot/directive", cfg.DirectiveTopic())
	assert.Equal(t, "tablebot/tablebot/event", cfg.EventTopic())
	assert.Equal(t, "tablebot/tablebot/status", cfg.StatusTopic())
	assert.Equal(t, "tablebot", cfg.ClientID)
	assert.Equal(t, uint16(30), cfg.KeepAlive)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{}, &fakeGadget{})
	assert.Error(t, err)
}

func TestRouter(t *testing.T) {
	l, err := New(testConfig(), &fakeGadget{})
	require.NoError(t, err)

	payload := []byte(`{"type":"move","direction":"stop","duration":0,"speed":0}`)

	ack, err := l.router(paho.PublishReceived{Packet: &paho.Publish{Topic: "tablebot/tablebot/directive", Payload: payload}})
	require.NoError(t, err)
	assert.True(t, ack)

	ack, err = l.router(paho.PublishReceived{Packet: &paho.Publish{Topic: "tablebot/other/directive", Payload: payload}})
	require.NoError(t, err)
	assert.True(t, ack, "unhandled topics are still acknowledged")

	require.Len(t, l.inbox, 1)
	assert.Equal(t, payload, <-l.inbox)
}

func TestRouter_FullInbox(t *testing.T) {
	l, err := New(testConfig(), &fakeGadget{})
	require.NoError(t, err)

	for i := 0; i < inboxSize+5; i++ {
		l.router(paho.PublishReceived{Packet: &paho.Publish{Topic: l.cfg.DirectiveTopic(), Payload: []byte(`{}`)}})
	}
	assert.Len(t, l.inbox, inboxSize)
}

func TestDirectiveLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := &fakeGadget{}
	l, err := New(testConfig(), g)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.directiveLoop(ctx)
	}()

	l.inbox <- []byte(`{"type":"move","direction":"forward","duration":1,"speed":10}`)
	l.inbox <- []byte(`{"header":{"namespace":"Custom.Mindstorms.Gadget","name":"Control","messageId":"m-2"},"payload":{"type":"move","direction":"stop","duration":0,"speed":0}}`)

	require.Eventually(t, func() bool { return len(g.received()) == 2 }, time.Second, 5*time.Millisecond)

	got := g.received()
	assert.JSONEq(t, `{"type":"move","direction":"forward","duration":1,"speed":10}`, string(got[0].Payload))
	assert.Equal(t, "m-2", got[1].Header.MessageID)

	cancel()
	<-done
}

func TestForward_NeverBlocks(t *testing.T) {
	l, err := New(testConfig(), &fakeGadget{})
	require.NoError(t, err)

	for i := 0; i < outboxSize*2; i++ {
		l.Forward(protocol.Event{Name: protocol.EventState})
	}
	assert.Len(t, l.outbox, outboxSize)
}
