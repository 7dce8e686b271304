package transport

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryPort is an in-process Port. Deliver, Connect and Disconnect run handlers synchronously
// on the caller's goroutine.
type MemoryPort struct {
	handlers handlerSet

	mu        sync.Mutex
	connected bool
	sent      []Envelope
}

var _ Port = (*MemoryPort)(nil)

// NewMemoryPort returns a disconnected port.
func NewMemoryPort() *MemoryPort {
	return &MemoryPort{}
}

// On registers a handler.
func (p *MemoryPort) On(event string, h Handler) {
	p.handlers.on(event, h)
}

// Send records the command when connected.
func (p *MemoryPort) Send(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return ErrNotConnected
	}
	p.sent = append(p.sent, env)
	return nil
}

// Connect marks the port up and fires the connect pseudo-event.
func (p *MemoryPort) Connect() {
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	p.handlers.dispatch(EventConnect, nil)
}

// Disconnect marks the port down and fires the disconnect pseudo-event.
func (p *MemoryPort) Disconnect() {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.handlers.dispatch(EventDisconnect, nil)
}

// Deliver pushes an event to the registered handlers. payload may be raw JSON or any
// marshalable value.
func (p *MemoryPort) Deliver(event string, payload any) error {
	var data json.RawMessage
	switch v := payload.(type) {
	case json.RawMessage:
		data = v
	case string:
		data = json.RawMessage(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		data = b
	}
	p.handlers.dispatch(event, data)
	return nil
}

// Sent returns a copy of every command recorded so far.
func (p *MemoryPort) Sent() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Envelope(nil), p.sent...)
}

// SentEvents returns the recorded commands with the given event name.
func (p *MemoryPort) SentEvents(event string) []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []Envelope
	for _, env := range p.sent {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

// Reset forgets recorded commands.
func (p *MemoryPort) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = nil
}
