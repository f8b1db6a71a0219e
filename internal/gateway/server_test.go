package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/config"
	"conductor/internal/gateway/handlers"
	"conductor/internal/gateway/websocket"
	"conductor/internal/runner"
	"conductor/internal/tools"
)

type echoRunner struct {
	hub *websocket.Hub
}

func (e *echoRunner) Run(ctx context.Context, req runner.Request) (*runner.Result, error) {
	if e.hub != nil {
		e.hub.PublishEvent(runner.Event{
			ConversationID: req.ConversationID,
			Round:          1,
			From:           runner.StateAwaitingModel,
			To:             runner.StateDone,
			Answer:         req.Message,
		})
	}
	return &runner.Result{ConversationID: req.ConversationID, Answer: req.Message, State: runner.StateDone}, nil
}

func newTestServer(t *testing.T, cfg config.ServerConfig) (*Server, *httptest.Server) {
	t.Helper()
	hub := websocket.NewHub()
	s := NewServer(cfg, Deps{
		Runner:  &echoRunner{hub: hub},
		Catalog: tools.NewCatalog(),
		Hub:     hub,
		Version: "v-test",
		Backend: "echo",
	})
	go hub.Run()

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = s.Shutdown(context.Background())
	})
	return s, ts
}

func TestServer_Health(t *testing.T) {
	_, ts := newTestServer(t, config.ServerConfig{})

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health handlers.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "v-test", health.Version)
	assert.Equal(t, "echo", health.Backend)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_Chat(t *testing.T) {
	_, ts := newTestServer(t, config.ServerConfig{})

	resp, err := http.Post(ts.URL+"/api/v1/chat", "application/json", strings.NewReader(`{"message":"ping"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res runner.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "ping", res.Answer)
	assert.NotEmpty(t, res.ConversationID)
}

func TestServer_Metrics(t *testing.T) {
	_, ts := newTestServer(t, config.ServerConfig{})

	// Generate one labelled request first.
	resp, err := http.Get(ts.URL + "/api/v1/tools")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `route="/api/v1/tools"`)
}

func TestServer_RateLimit(t *testing.T) {
	_, ts := newTestServer(t, config.ServerConfig{RateLimit: 60, Burst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/api/v1/health")
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestServer_RateLimitDisabled(t *testing.T) {
	_, ts := newTestServer(t, config.ServerConfig{RateLimit: 0, Burst: 1})

	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/api/v1/health")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestServer_WebSocketChat(t *testing.T) {
	_, ts := newTestServer(t, config.ServerConfig{})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(websocket.WSMessage{
		Type:    websocket.TypeChat,
		Session: "conv-1",
		Message: "hello",
	}))

	// The event and the result may arrive in either order.
	seen := map[string]websocket.WSMessage{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for len(seen) < 2 {
		var msg websocket.WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		seen[msg.Type] = msg
	}

	result, ok := seen[websocket.TypeResult]
	require.True(t, ok)
	assert.Equal(t, "conv-1", result.Session)
	var res runner.Result
	require.NoError(t, json.Unmarshal(result.Data, &res))
	assert.Equal(t, "hello", res.Answer)

	event, ok := seen[websocket.TypeEvent]
	require.True(t, ok)
	assert.Equal(t, "conv-1", event.Session)
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := NewServer(config.ServerConfig{}, Deps{Runner: &echoRunner{}, Hub: websocket.NewHub()})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/api/v1/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, s.Shutdown(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
