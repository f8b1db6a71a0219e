package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/runner"
	"conductor/pkg/metrics"
)

func newTestClient(hub *Hub, id string) *Client {
	return &Client{
		hub:         hub,
		send:        make(chan []byte, sendQueueLen),
		sessions:    make(map[string]bool),
		id:          id,
		connectedAt: time.Now(),
	}
}

// runningHub starts a hub that is stopped when the test ends.
func runningHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

// attached registers clients and waits until the hub has them all.
func attached(t *testing.T, hub *Hub, ids ...string) []*Client {
	t.Helper()
	out := make([]*Client, len(ids))
	for i, id := range ids {
		out[i] = newTestClient(hub, id)
		hub.Register(out[i])
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == len(ids) }, time.Second, 5*time.Millisecond)
	return out
}

func receive(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.id)
		return WSMessage{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Errorf("client %s received %s, want nothing", c.id, data)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHub_AttachDetach(t *testing.T) {
	hub := runningHub(t)
	c := attached(t, hub, "c1")[0]

	hub.Subscribe(c, "conv-1")
	hub.Unregister(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-c.send
	assert.False(t, open, "send queue should be closed on detach")

	hub.mu.RLock()
	_, followed := hub.followers["conv-1"]
	hub.mu.RUnlock()
	assert.False(t, followed, "detached client should leave its sessions")

	// A second detach is a no-op rather than a double close.
	hub.Unregister(c)
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewHub()
	a, b := newTestClient(hub, "a"), newTestClient(hub, "b")

	hub.Subscribe(a, "conv-1")
	hub.Subscribe(b, "conv-1")
	assert.True(t, a.sessions["conv-1"])
	assert.Len(t, hub.followers["conv-1"], 2)

	hub.Unsubscribe(a, "conv-1")
	assert.False(t, a.sessions["conv-1"])
	assert.Len(t, hub.followers["conv-1"], 1)

	hub.Unsubscribe(b, "conv-1")
	assert.NotContains(t, hub.followers, "conv-1")
}

func TestHub_BroadcastReachesFollowersOnly(t *testing.T) {
	hub := runningHub(t)
	cs := attached(t, hub, "a", "b")
	hub.Subscribe(cs[0], "conv-1")
	hub.Subscribe(cs[1], "conv-2")

	frame, err := Encode(TypeResult, "conv-1", map[string]string{"answer": "42"})
	require.NoError(t, err)
	hub.Broadcast("conv-1", frame)

	msg := receive(t, cs[0])
	assert.Equal(t, TypeResult, msg.Type)
	assert.JSONEq(t, `{"answer":"42"}`, string(msg.Data))
	assertSilent(t, cs[1])
}

func TestHub_Announce(t *testing.T) {
	hub := runningHub(t)
	cs := attached(t, hub, "a", "b")
	hub.Subscribe(cs[0], "conv-1")

	require.NoError(t, hub.Announce(TypeReload, map[string]bool{"search_enabled": true}))

	for _, c := range cs {
		msg := receive(t, c)
		assert.Equal(t, TypeReload, msg.Type)
		assert.Empty(t, msg.Session)
		assert.JSONEq(t, `{"search_enabled":true}`, string(msg.Data))
	}
}

func TestHub_AnnounceEncodeError(t *testing.T) {
	hub := NewHub()
	assert.Error(t, hub.Announce(TypeReload, make(chan int)))
}

func TestHub_PublishEvent(t *testing.T) {
	hub := runningHub(t)
	c := attached(t, hub, "c")[0]
	hub.Subscribe(c, "conv-1")

	hub.PublishEvent(runner.Event{
		ConversationID: "conv-1",
		Round:          1,
		From:           runner.StateAwaitingModel,
		To:             runner.StateParsingCalls,
	})

	msg := receive(t, c)
	assert.Equal(t, TypeEvent, msg.Type)
	assert.Equal(t, "conv-1", msg.Session)

	var e struct {
		Round int    `json:"round"`
		To    string `json:"to"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	assert.Equal(t, 1, e.Round)
	assert.Equal(t, runner.StateParsingCalls.String(), e.To)
}

func TestHub_SlowClientMissesFrames(t *testing.T) {
	hub := runningHub(t)
	slow := &Client{hub: hub, send: make(chan []byte, 1), sessions: map[string]bool{}, id: "slow"}
	fast := newTestClient(hub, "fast")
	hub.Register(slow)
	hub.Register(fast)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	dropped := testutil.ToFloat64(metrics.WSFrames.WithLabelValues("dropped"))
	hub.Broadcast("", []byte(`{"type":"reload"}`))
	hub.Broadcast("", []byte(`{"type":"reload"}`))

	receive(t, fast)
	receive(t, fast)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.WSFrames.WithLabelValues("dropped")) == dropped+1
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, slow.send, 1)
}

func TestHub_Stop(t *testing.T) {
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run()
		close(stopped)
	}()
	c := attached(t, hub, "c")[0]

	hub.Stop()
	hub.Stop()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	_, open := <-c.send
	assert.False(t, open, "send queue should be closed on stop")
	assert.Zero(t, hub.ClientCount())

	// Neither blocks once stopped.
	hub.Broadcast("x", []byte("y"))
	hub.Unregister(c)
	hub.Register(newTestClient(hub, "late"))
}
