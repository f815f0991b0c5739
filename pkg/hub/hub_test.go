package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/teslashibe/go-tablebot/pkg/protocol"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	return h, cancel
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		return msg, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}, false
	}
}

func TestHub_Broadcast(t *testing.T) {
	defer goleak.VerifyNone(t)

	h, cancel := startHub(t)
	defer cancel()

	a := NewClient(h, nil)
	b := NewClient(h, nil)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.BroadcastJSON(map[string]string{"hello": "world"}))

	for _, c := range []*Client{a, b} {
		msg, ok := receive(t, c)
		require.True(t, ok)
		assert.JSONEq(t, `{"hello":"world"}`, string(msg.Data))
	}

	cancel()
	<-h.done
	assert.False(t, h.IsRunning())
	assert.Equal(t, 0, h.ClientCount())

	_, ok := receive(t, a)
	assert.False(t, ok, "send channel should be closed on stop")
}

func TestHub_ProtocolMessage(t *testing.T) {
	defer goleak.VerifyNone(t)

	h, cancel := startHub(t)
	defer cancel()

	c := NewClient(h, nil)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	pm, err := protocol.NewEventMessage(protocol.Event{Name: protocol.EventConnected})
	require.NoError(t, err)
	msg, err := NewProtocolMessage(pm)
	require.NoError(t, err)
	h.Broadcast(msg)

	got, ok := receive(t, c)
	require.True(t, ok)
	parsed, err := protocol.ParseMessage(got.Data)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeEvent, parsed.Type)

	cancel()
	<-h.done
}

func TestHub_Unregister(t *testing.T) {
	defer goleak.VerifyNone(t)

	h, cancel := startHub(t)
	defer cancel()

	c := NewClient(h, nil)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	h.unregister <- c
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)

	_, ok := receive(t, c)
	assert.False(t, ok)

	cancel()
	<-h.done
}

func TestHub_DropsSlowClient(t *testing.T) {
	defer goleak.VerifyNone(t)

	h, cancel := startHub(t)
	defer cancel()

	slow := NewClient(h, nil)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	for slow.Send(NewJSONMessage([]byte(`{}`))) {
	}
	h.Broadcast(NewJSONMessage([]byte(`{"n":1}`)))

	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)

	cancel()
	<-h.done
}

func TestNewClient_StoppedHub(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := New("stopped")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Run(ctx)

	assert.Nil(t, NewClient(h, nil))
}
