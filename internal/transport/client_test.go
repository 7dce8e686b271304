package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// echoServer upgrades every request, records inbound frames and lets the test push frames.
type echoServer struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []Envelope
	arrived  chan Envelope
}

func newEchoServer(t *testing.T) (*echoServer, *httptest.Server) {
	s := &echoServer{t: t, arrived: make(chan Envelope, 16)}
	srv := httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(func() {
		s.dropAll()
		srv.Close()
	})
	return s, srv
}

func (s *echoServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if json.Unmarshal(msg, &env) == nil {
			s.mu.Lock()
			s.received = append(s.received, env)
			s.mu.Unlock()
			s.arrived <- env
		}
	}
}

func (s *echoServer) push(event string, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn := s.conns[len(s.conns)-1]
	frame, _ := json.Marshal(Envelope{Event: event, Data: json.RawMessage(data)})
	require.NoError(s.t, conn.WriteMessage(websocket.TextMessage, frame))
}

func (s *echoServer) waitConns(n int) {
	require.Eventually(s.t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.conns) >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *echoServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestClient_SendAndReceive(t *testing.T) {
	server, srv := newEchoServer(t)

	client := NewClient(ClientConfig{URL: wsURL(srv), Logger: zerolog.Nop()})

	connected := make(chan struct{}, 1)
	client.On(EventConnect, func(json.RawMessage) { connected <- struct{}{} })

	pushed := make(chan json.RawMessage, 1)
	client.On("login_success", func(data json.RawMessage) { pushed <- data })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	waitFor(t, connected)
	assert.True(t, client.Connected())

	require.NoError(t, client.Send(ctx, "join_driver", nil))
	select {
	case env := <-server.arrived:
		assert.Equal(t, "join_driver", env.Event)
		assert.JSONEq(t, `{}`, string(env.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the command")
	}

	server.push("login_success", `{"role":"driver"}`)
	select {
	case data := <-pushed:
		assert.JSONEq(t, `{"role":"driver"}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("push never delivered")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, client.Connected())
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	client := NewClient(ClientConfig{URL: "ws://127.0.0.1:1/ws", Logger: zerolog.Nop()})
	err := client.Send(context.Background(), "request_grid", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	server, srv := newEchoServer(t)

	client := NewClient(ClientConfig{
		URL:            wsURL(srv),
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		Logger:         zerolog.Nop(),
	})

	connected := make(chan struct{}, 4)
	disconnected := make(chan struct{}, 4)
	client.On(EventConnect, func(json.RawMessage) { connected <- struct{}{} })
	client.On(EventDisconnect, func(json.RawMessage) { disconnected <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	waitFor(t, connected)
	server.waitConns(1)
	server.dropAll()
	waitFor(t, disconnected)
	waitFor(t, connected)

	assert.Equal(t, int64(2), client.Connects())

	cancel()
	<-done
}

func TestClient_IgnoresFramesWithoutEnvelope(t *testing.T) {
	server, srv := newEchoServer(t)
	client := NewClient(ClientConfig{URL: wsURL(srv), Logger: zerolog.Nop()})

	connected := make(chan struct{}, 1)
	got := make(chan struct{}, 1)
	client.On(EventConnect, func(json.RawMessage) { connected <- struct{}{} })
	client.On("grid_data", func(json.RawMessage) { got <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()
	waitFor(t, connected)
	server.waitConns(1)

	server.mu.Lock()
	conn := server.conns[0]
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	server.mu.Unlock()
	server.push("grid_data", `{}`)

	waitFor(t, got)
	cancel()
	<-done
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope("toggle_traffic", map[string]int{"u": 1, "v": 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"u":1,"v":2}`, string(env.Data))

	_, err = NewEnvelope("", nil)
	assert.Error(t, err)
}
