package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// DefaultWriteWait bounds a single frame write.
	DefaultWriteWait = 10 * time.Second

	// DefaultPongWait is how long the connection may stay silent before it is considered lost.
	DefaultPongWait = 60 * time.Second

	// DefaultSendBuffer is the number of outbound frames queued per connection.
	DefaultSendBuffer = 64
)

// ClientConfig holds configuration for the WebSocket channel.
type ClientConfig struct {
	// URL is the backend WebSocket endpoint (required), e.g. ws://localhost:8000/ws.
	URL string

	// Header is sent with the upgrade request (optional).
	Header http.Header

	// Dialer is the WebSocket dialer (optional, defaults to websocket.DefaultDialer).
	Dialer *websocket.Dialer

	// InitialBackoff is the first reconnect delay.
	// Default: 500ms
	InitialBackoff time.Duration

	// MaxBackoff caps the reconnect delay.
	// Default: 30 seconds
	MaxBackoff time.Duration

	// WriteWait bounds a single frame write.
	WriteWait time.Duration

	// PongWait is the read deadline renewed by every pong.
	PongWait time.Duration

	// SendBuffer is the outbound queue size.
	SendBuffer int

	// Logger for channel lifecycle events.
	Logger zerolog.Logger
}

// Client is a reconnecting WebSocket implementation of Port.
type Client struct {
	cfg      ClientConfig
	dialer   *websocket.Dialer
	handlers handlerSet
	logger   zerolog.Logger

	mu  sync.Mutex
	out chan []byte // nil while disconnected

	connects atomic.Int64
}

var _ Port = (*Client)(nil)

// NewClient creates a channel client. Call Run to connect.
func NewClient(cfg ClientConfig) *Client {
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.WriteWait == 0 {
		cfg.WriteWait = DefaultWriteWait
	}
	if cfg.PongWait == 0 {
		cfg.PongWait = DefaultPongWait
	}
	if cfg.SendBuffer == 0 {
		cfg.SendBuffer = DefaultSendBuffer
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	return &Client{
		cfg:    cfg,
		dialer: dialer,
		logger: cfg.Logger.With().Str("component", "transport").Logger(),
	}
}

// On registers a handler. Handlers must be registered before Run.
func (c *Client) On(event string, h Handler) {
	c.handlers.on(event, h)
}

// Send queues a command frame on the current connection.
func (c *Client) Send(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env, err := NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.out == nil {
		return ErrNotConnected
	}
	select {
	case c.out <- frame:
		c.logger.Debug().Str("event", event).Msg("command queued")
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Connected reports whether a connection is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out != nil
}

// Connects returns how many times a connection has been established.
func (c *Client) Connects() int64 {
	return c.connects.Load()
}

// Run dials the backend and keeps the channel up until ctx is cancelled.
// Lost connections are redialled with exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxInterval = c.cfg.MaxBackoff
	bo.MaxElapsedTime = 0

	for {
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
		if err == nil {
			bo.Reset()
			c.serve(ctx, conn)
		} else if ctx.Err() == nil {
			c.logger.Warn().Err(err).Str("url", c.cfg.URL).Msg("dial failed")
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := bo.NextBackOff()
		c.logger.Info().Dur("retry_in", wait).Msg("reconnecting")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// serve runs one connection until it drops or ctx is cancelled.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	out := make(chan []byte, c.cfg.SendBuffer)
	done := make(chan struct{})

	c.mu.Lock()
	c.out = out
	c.mu.Unlock()

	n := c.connects.Add(1)
	c.logger.Info().Int64("connection", n).Msg("channel connected")

	// Connect handlers run before the first push is read.
	c.handlers.dispatch(EventConnect, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writePump(conn, out, done)
	}()
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	err := c.readPump(conn)

	c.mu.Lock()
	c.out = nil
	c.mu.Unlock()

	close(done)
	_ = conn.Close()
	wg.Wait()

	if ctx.Err() == nil {
		c.logger.Warn().Err(err).Msg("channel lost")
	}
	c.handlers.dispatch(EventDisconnect, nil)
}

func (c *Client) readPump(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))

		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil || env.Event == "" {
			c.logger.Warn().Int("bytes", len(msg)).Msg("dropping frame without a valid envelope")
			continue
		}

		if !c.handlers.dispatch(env.Event, env.Data) {
			c.logger.Debug().Str("event", env.Event).Msg("no handler for event")
		}
	}
}

func (c *Client) writePump(conn *websocket.Conn, out <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case frame := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn().Err(err).Msg("write failed")
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			err := conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Debug().Err(err).Msg("close frame not sent")
			}
			return
		}
	}
}
