package core

import (
	"context"
	"fmt"

	"github.com/swiftroute/swiftroute/internal/geo"
	"github.com/swiftroute/swiftroute/internal/geocode"
	"github.com/swiftroute/swiftroute/internal/grid"
	"github.com/swiftroute/swiftroute/internal/session"
)

// Intents run on the loop and return the session's verdict. A rejected intent sends nothing.

// ChooseRole joins the backend as role.
func (c *Core) ChooseRole(ctx context.Context, role session.Role) error {
	return c.do(ctx, func() error { return c.session.ChooseRole(ctx, role) })
}

// SetPickup sets the pickup point.
func (c *Core) SetPickup(ctx context.Context, loc geo.Location) error {
	return c.do(ctx, func() error { return c.session.SetPickup(loc) })
}

// SetDrop sets the drop point.
func (c *Core) SetDrop(ctx context.Context, loc geo.Location) error {
	return c.do(ctx, func() error { return c.session.SetDrop(loc) })
}

// ChooseSuggestion sets field to the location of one of its current suggestions and clears
// the suggestion list.
func (c *Core) ChooseSuggestion(ctx context.Context, field Field, index int) error {
	return c.do(ctx, func() error {
		list := c.suggestions[field]
		if index < 0 || index >= len(list) {
			return fmt.Errorf("%w: %s[%d]", ErrNoSuggestion, field, index)
		}
		loc := list[index].Location

		var err error
		if field == FieldPickup {
			err = c.session.SetPickup(loc)
		} else {
			err = c.session.SetDrop(loc)
		}
		if err != nil {
			return err
		}
		delete(c.suggestions, field)
		return nil
	})
}

// SelectVehicle records the vehicle choice.
func (c *Core) SelectVehicle(ctx context.Context, class session.VehicleClass) error {
	return c.do(ctx, func() error { return c.session.SelectVehicle(class) })
}

// SetSafetyMode records the safety option.
func (c *Core) SetSafetyMode(ctx context.Context, on bool) error {
	return c.do(ctx, func() error { return c.session.SetSafetyMode(on) })
}

// RequestRide requests a ride with the pickup, drop and safety option committed when the
// loop runs it. A nil safety keeps the current selection.
func (c *Core) RequestRide(ctx context.Context, class session.VehicleClass, safety *bool) error {
	return c.do(ctx, func() error { return c.session.RequestRide(ctx, class, safety) })
}

// SubmitOTP submits the passenger's code for the offered job.
func (c *Core) SubmitOTP(ctx context.Context, code string) error {
	return c.do(ctx, func() error { return c.session.SubmitOTP(ctx, code) })
}

// EndTrip ends the active trip and resets the session.
func (c *Core) EndTrip(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.session.EndTrip(); err != nil {
			return err
		}
		c.suggestions = make(map[Field][]geocode.Suggestion)
		return nil
	})
}

// ToggleEdge asks the server to flip congestion on an edge.
func (c *Core) ToggleEdge(ctx context.Context, u, v grid.NodeID) error {
	return c.do(ctx, func() error { return c.grid.ToggleEdge(ctx, u, v) })
}

// Search runs a debounced lookup for field and publishes the result if no newer query for
// the same field was issued meanwhile. A superseded call returns geocode.ErrSuperseded.
func (c *Core) Search(ctx context.Context, field Field, query string) ([]geocode.Suggestion, error) {
	searcher, ok := c.searchers[field]
	if !ok {
		return nil, ErrUnknownField
	}

	res, err := searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	err = c.do(ctx, func() error {
		// A newer query may have been issued while this one waited in the queue.
		if !searcher.IsLatest(res.Seq) {
			return geocode.ErrSuperseded
		}
		c.suggestions[field] = append([]geocode.Suggestion(nil), res.Suggestions...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res.Suggestions, nil
}
