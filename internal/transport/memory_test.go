package transport

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPort(t *testing.T) {
	port := NewMemoryPort()
	ctx := context.Background()

	assert.ErrorIs(t, port.Send(ctx, "join_passenger", nil), ErrNotConnected)

	var events []string
	port.On(EventConnect, func(json.RawMessage) { events = append(events, EventConnect) })
	port.On(EventDisconnect, func(json.RawMessage) { events = append(events, EventDisconnect) })
	port.On("new_job", func(data json.RawMessage) { events = append(events, string(data)) })

	port.Connect()
	require.NoError(t, port.Send(ctx, "join_passenger", nil))
	require.NoError(t, port.Send(ctx, "request_grid", nil))
	require.NoError(t, port.Deliver("new_job", `{"ride_id":5}`))
	port.Disconnect()

	assert.Equal(t, []string{EventConnect, `{"ride_id":5}`, EventDisconnect}, events)
	assert.Len(t, port.Sent(), 2)
	assert.Len(t, port.SentEvents("request_grid"), 1)

	port.Reset()
	assert.Empty(t, port.Sent())
}
