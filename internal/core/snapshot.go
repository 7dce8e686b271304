package core

import (
	"context"
	"time"

	"github.com/swiftroute/swiftroute/internal/fleet"
	"github.com/swiftroute/swiftroute/internal/geocode"
	"github.com/swiftroute/swiftroute/internal/grid"
	"github.com/swiftroute/swiftroute/internal/session"
)

// nearestVehicles is how many vehicles a snapshot lists as closest to the device.
const nearestVehicles = 3

// Snapshot is an immutable copy of everything the view needs.
type Snapshot struct {
	Session          session.State                  `json:"session"`
	Grid             grid.Snapshot                  `json:"grid"`
	Fleet            []fleet.Entry                  `json:"fleet"`
	Nearest          []fleet.Entry                  `json:"nearest"`
	NearbyCount      int                            `json:"nearby_count"`
	Suggestions      map[Field][]geocode.Suggestion `json:"suggestions"`
	Connected        bool                           `json:"connected"`
	Stale            bool                           `json:"stale"`
	Connects         int                            `json:"connects"`
	LocationResolved bool                           `json:"location_resolved"`
	LocationFallback bool                           `json:"location_fallback"`
	TakenAt          time.Time                      `json:"taken_at"`
}

// Snapshot copies the current state.
func (c *Core) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.do(ctx, func() error {
		snap = c.snapshot()
		return nil
	})
	return snap, err
}

func (c *Core) snapshot() Snapshot {
	state := c.session.State()

	suggestions := make(map[Field][]geocode.Suggestion, len(c.suggestions))
	for f, list := range c.suggestions {
		suggestions[f] = append([]geocode.Suggestion(nil), list...)
	}

	return Snapshot{
		Session:          state,
		Grid:             c.grid.Snapshot(),
		Fleet:            c.fleet.Entries(),
		Nearest:          c.fleet.Nearest(state.MyLocation, nearestVehicles),
		NearbyCount:      c.fleet.CountNear(state.MyLocation),
		Suggestions:      suggestions,
		Connected:        c.connected,
		Stale:            c.stale,
		Connects:         c.connects,
		LocationResolved: c.locationResolved,
		LocationFallback: c.locationFallback,
		TakenAt:          time.Now().UTC(),
	}
}
