package core

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/swiftroute/swiftroute/internal/fleet"
	"github.com/swiftroute/swiftroute/internal/grid"
	"github.com/swiftroute/swiftroute/internal/protocol"
	"github.com/swiftroute/swiftroute/internal/session"
	"github.com/swiftroute/swiftroute/internal/transport"
)

func (c *Core) registerHandlers() {
	c.port.On(transport.EventConnect, c.queued(transport.EventConnect, c.onConnect))
	c.port.On(transport.EventDisconnect, c.queued(transport.EventDisconnect, c.onDisconnect))

	c.port.On(protocol.EventLoginSuccess, c.queued(protocol.EventLoginSuccess, c.onLoginSuccess))
	c.port.On(protocol.EventRideConfirmed, c.queued(protocol.EventRideConfirmed, c.onRideConfirmed))
	c.port.On(protocol.EventNewJob, c.queued(protocol.EventNewJob, c.onNewJob))
	c.port.On(protocol.EventOTPSuccess, c.queued(protocol.EventOTPSuccess, c.onOTPSuccess))
	c.port.On(protocol.EventDriversUpdate, c.queued(protocol.EventDriversUpdate, c.onRoster))
	c.port.On(protocol.EventGameState, c.queued(protocol.EventGameState, c.onRoster))
	c.port.On(protocol.EventGridData, c.queued(protocol.EventGridData, c.onGridData))
}

// queued wraps a push handler so it runs on the loop. A handler error means the push was
// ignored; state is left as it was.
func (c *Core) queued(event string, h func(json.RawMessage) error) transport.Handler {
	return func(data json.RawMessage) {
		c.enqueue(func() {
			c.metrics.pushReceived(event)
			if err := h(data); err != nil {
				c.metrics.pushIgnored(event, ignoreReason(err))
				c.logger.Warn().
					Err(err).
					Str("event", event).
					Str("phase", c.session.Phase().String()).
					Msg("ignoring push")
			}
		})
	}
}

func ignoreReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrMalformedPayload):
		return "malformed"
	case errors.Is(err, session.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, grid.ErrInvalidSnapshot), errors.Is(err, fleet.ErrInvalidSnapshot):
		return "invalid_snapshot"
	default:
		return "rejected"
	}
}

func (c *Core) onConnect(json.RawMessage) error {
	c.connected = true
	c.ready.Store(true)
	c.connects++
	if c.connects > 1 {
		c.metrics.reconnected()
		c.logger.Info().Int("connects", c.connects).Msg("channel reconnected, resyncing grid")
	}

	// Exactly one grid request per (re)connect.
	if err := c.port.Send(context.Background(), protocol.EventRequestGrid, struct{}{}); err != nil {
		c.metrics.commandSent(context.Background(), protocol.EventRequestGrid, err)
		return err
	}
	c.metrics.commandSent(context.Background(), protocol.EventRequestGrid, nil)
	return nil
}

func (c *Core) onDisconnect(json.RawMessage) error {
	c.connected = false
	c.ready.Store(false)
	c.stale = true
	c.logger.Warn().Msg("channel lost, state marked stale")
	return nil
}

func (c *Core) onLoginSuccess(data json.RawMessage) error {
	var msg protocol.LoginSuccess
	if err := decode(data, &msg); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.session.ConfirmLogin(msg.Role)
}

func (c *Core) onRideConfirmed(data json.RawMessage) error {
	var match protocol.RideMatch
	if err := decode(data, &match); err != nil {
		return err
	}
	if err := match.Validate(); err != nil {
		return err
	}
	return c.session.OnMatched(match)
}

func (c *Core) onNewJob(data json.RawMessage) error {
	var job protocol.DriverJob
	if err := decode(data, &job); err != nil {
		return err
	}
	if err := job.Validate(); err != nil {
		return err
	}
	return c.session.OnJobOffered(job)
}

func (c *Core) onOTPSuccess(json.RawMessage) error {
	return c.session.OnOTPAccepted()
}

func (c *Core) onRoster(data json.RawMessage) error {
	vehicles, err := protocol.DecodeRoster(data)
	if err != nil {
		return err
	}
	return c.fleet.ReplaceAll(vehicles)
}

func (c *Core) onGridData(data json.RawMessage) error {
	var g protocol.GridData
	if err := decode(data, &g); err != nil {
		return err
	}
	if err := c.grid.LoadSnapshot(g.Nodes, g.Edges); err != nil {
		return err
	}
	if c.stale {
		c.logger.Info().Uint64("revision", c.grid.Revision()).Msg("grid resynced, state fresh")
	}
	c.stale = false
	return nil
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return protocol.ErrMalformedPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		if errors.Is(err, protocol.ErrMalformedPayload) {
			return err
		}
		return errors.Join(protocol.ErrMalformedPayload, err)
	}
	return nil
}
