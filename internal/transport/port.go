// Package transport provides the persistent event channel between the client and the
// dispatch backend.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Pseudo-events delivered through On when the channel comes up or goes down.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// Predefined errors for channel operations.
var (
	// ErrNotConnected is returned by Send while the channel is down.
	ErrNotConnected = errors.New("channel not connected")

	// ErrSendBufferFull is returned when the outbound queue cannot take another frame.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Handler receives the raw data of a pushed event. Handlers for a channel run one at a time
// in the order events arrived.
type Handler func(data json.RawMessage)

// Port is the client's view of the event channel.
type Port interface {
	// Send emits a command. It does not wait for any server reply.
	Send(ctx context.Context, event string, payload any) error
	// On registers a handler for a pushed event or a connection pseudo-event.
	On(event string, h Handler)
}

// Envelope is the frame format on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an envelope. A nil payload becomes {}.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if event == "" {
		return Envelope{}, errors.New("event name is required")
	}
	if payload == nil {
		return Envelope{Event: event, Data: json.RawMessage("{}")}, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return Envelope{Event: event, Data: raw}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

// Decode unmarshals the envelope data into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// handlerSet is the registry shared by Port implementations.
type handlerSet struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func (s *handlerSet) on(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[string][]Handler)
	}
	s.handlers[event] = append(s.handlers[event], h)
}

// dispatch runs the handlers for event and reports whether any were registered.
func (s *handlerSet) dispatch(event string, data json.RawMessage) bool {
	s.mu.RLock()
	hs := s.handlers[event]
	s.mu.RUnlock()

	for _, h := range hs {
		h(data)
	}
	return len(hs) > 0
}
