// Package view projects a core snapshot into the frame a renderer draws.
//
// Project is pure: the same snapshot always yields the same frame, and nothing in this
// package touches the network or the core.
package view

import (
	"github.com/swiftroute/swiftroute/internal/core"
	"github.com/swiftroute/swiftroute/internal/fleet"
	"github.com/swiftroute/swiftroute/internal/geo"
	"github.com/swiftroute/swiftroute/internal/geocode"
	"github.com/swiftroute/swiftroute/internal/grid"
	"github.com/swiftroute/swiftroute/internal/session"
	"github.com/swiftroute/swiftroute/pkg/polyline"
)

// Panel names the side panel a renderer shows.
type Panel string

// Panels.
const (
	PanelLogin              Panel = "login"
	PanelPassengerBooking   Panel = "passenger_booking"
	PanelPassengerConfirmed Panel = "passenger_confirmed"
	PanelDriverSearching    Panel = "driver_searching"
	PanelDriverJob          Panel = "driver_job"
	PanelDriverActive       Panel = "driver_active"
)

// MarkerKind classifies a map marker.
type MarkerKind string

// Marker kinds.
const (
	MarkerSelf    MarkerKind = "self"
	MarkerPickup  MarkerKind = "pickup"
	MarkerDrop    MarkerKind = "drop"
	MarkerVehicle MarkerKind = "vehicle"
)

// Marker is a point on the map. Key is stable across frames for the same object.
type Marker struct {
	Key      string       `json:"key"`
	Kind     MarkerKind   `json:"kind"`
	Location geo.Location `json:"location"`
	Moving   bool         `json:"moving,omitempty"`
}

// Segment is one drawn grid edge.
type Segment struct {
	U      grid.NodeID  `json:"u"`
	V      grid.NodeID  `json:"v"`
	From   geo.Location `json:"from"`
	To     geo.Location `json:"to"`
	Weight float64      `json:"weight"`
	Jam    bool         `json:"jam"`
}

// Fare is a quoted price for one catalogue vehicle.
type Fare struct {
	Vehicle  session.Vehicle `json:"vehicle"`
	Price    int             `json:"price"`
	Selected bool            `json:"selected"`
}

// Trip is the ride detail shown once a passenger is matched or a driver has a job.
type Trip struct {
	RideID   string  `json:"ride_id"`
	OTP      string  `json:"otp,omitempty"`
	DriverID string  `json:"driver_id,omitempty"`
	Price    float64 `json:"price"`
	Message  string  `json:"message,omitempty"`

	// RouteMeters is the length of the matched route, if any.
	RouteMeters float64 `json:"route_meters,omitempty"`
}

// Frame is everything a renderer needs for one paint.
type Frame struct {
	Panel          Panel                           `json:"panel"`
	Phase          session.Phase                   `json:"phase"`
	Role           session.Role                    `json:"role"`
	Center         geo.Location                    `json:"center"`
	Markers        []Marker                        `json:"markers"`
	Route          []geo.Location                  `json:"route"`
	RoutePolyline  string                          `json:"route_polyline,omitempty"`
	Segments       []Segment                       `json:"segments"`
	JamCount       int                             `json:"jam_count"`
	GridRevision   uint64                          `json:"grid_revision"`
	Fares          []Fare                          `json:"fares"`
	SafetyMode     bool                            `json:"safety_mode"`
	ConfirmEnabled bool                            `json:"confirm_enabled"`
	Requesting     bool                            `json:"requesting"`
	Trip           *Trip                           `json:"trip,omitempty"`
	NearbyCount    int                             `json:"nearby_count"`
	Suggestions    map[string][]geocode.Suggestion `json:"suggestions"`
	Connected      bool                            `json:"connected"`
	Stale          bool                            `json:"stale"`
	LocationApprox bool                            `json:"location_approximate"`

	// Feature switches. Project turns all of them on; the serving layer clears the ones
	// disabled at runtime.
	SafetyAvailable        bool `json:"safety_available"`
	TrafficToggleAvailable bool `json:"traffic_toggle_available"`
	SearchAvailable        bool `json:"search_available"`
}

// Project builds the frame for snap.
func Project(snap core.Snapshot) Frame {
	s := snap.Session

	f := Frame{
		Panel:          panelFor(s),
		Phase:          s.Phase,
		Role:           s.Role,
		Center:         s.MyLocation,
		Markers:        markers(s, snap.Fleet),
		Route:          []geo.Location{},
		Segments:       segments(snap.Grid),
		GridRevision:   snap.Grid.Revision,
		SafetyMode:     s.SafetyMode,
		Requesting:     s.RideRequestInFlight(),
		NearbyCount:    snap.NearbyCount,
		Suggestions:    make(map[string][]geocode.Suggestion, len(snap.Suggestions)),
		Connected:      snap.Connected,
		Stale:          snap.Stale,
		LocationApprox: snap.LocationFallback,

		SafetyAvailable:        true,
		TrafficToggleAvailable: true,
		SearchAvailable:        true,
	}

	for _, seg := range f.Segments {
		if seg.Jam {
			f.JamCount++
		}
	}

	if s.Role == session.RolePassenger {
		f.Fares = fares(s)
	}
	if f.Panel == PanelPassengerBooking {
		f.ConfirmEnabled = s.CanConfirm()
	}

	for field, list := range snap.Suggestions {
		f.Suggestions[string(field)] = append([]geocode.Suggestion(nil), list...)
	}

	switch {
	case s.Match != nil:
		f.Trip = &Trip{
			RideID:   s.Match.RideID.String(),
			OTP:      s.Match.OTP,
			DriverID: s.Match.Driver.ID.String(),
			Price:    s.Match.Price,
			Message:  s.Match.Message,
		}
		f.Route = append(f.Route, s.Match.Route...)
		if len(f.Route) > 1 {
			points := toPoints(f.Route)
			f.RoutePolyline = polyline.Encode(points)
			f.Trip.RouteMeters = polyline.Length(points)
		}
	case s.Job != nil:
		f.Trip = &Trip{
			RideID:  s.Job.RideID.String(),
			Price:   s.Job.Price,
			Message: s.Job.Message,
		}
	}

	if s.Pickup != nil && s.Phase == session.PhaseMatched {
		f.Center = *s.Pickup
	}
	return f
}

func panelFor(s session.State) Panel {
	switch s.Role {
	case session.RolePassenger:
		if s.Phase == session.PhaseMatched {
			return PanelPassengerConfirmed
		}
		return PanelPassengerBooking
	case session.RoleDriver:
		switch s.Phase {
		case session.PhaseJobOffered, session.PhaseVerifyingOtp:
			return PanelDriverJob
		case session.PhaseActiveTrip:
			return PanelDriverActive
		default:
			return PanelDriverSearching
		}
	default:
		return PanelLogin
	}
}

func markers(s session.State, vehicles []fleet.Entry) []Marker {
	out := make([]Marker, 0, len(vehicles)+3)
	out = append(out, Marker{Key: "self", Kind: MarkerSelf, Location: s.MyLocation})
	if s.Pickup != nil {
		out = append(out, Marker{Key: "pickup", Kind: MarkerPickup, Location: *s.Pickup})
	}
	if s.Drop != nil {
		out = append(out, Marker{Key: "drop", Kind: MarkerDrop, Location: *s.Drop})
	}
	for _, v := range vehicles {
		out = append(out, Marker{
			Key:      "vehicle:" + v.ID.String(),
			Kind:     MarkerVehicle,
			Location: v.Location(),
			Moving:   v.Moving,
		})
	}
	return out
}

func segments(g grid.Snapshot) []Segment {
	nodes := make(map[grid.NodeID]geo.Location, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes[n.ID] = n.Location()
	}

	out := make([]Segment, 0, len(g.Edges))
	for _, e := range g.Edges {
		from, ok := nodes[e.U]
		if !ok {
			continue
		}
		to, ok := nodes[e.V]
		if !ok {
			continue
		}
		out = append(out, Segment{
			U:      e.U,
			V:      e.V,
			From:   from,
			To:     to,
			Weight: e.Weight,
			Jam:    e.IsJam(),
		})
	}
	return out
}

func fares(s session.State) []Fare {
	catalogue := session.Catalogue()
	out := make([]Fare, 0, len(catalogue))
	for _, v := range catalogue {
		price, err := session.Quote(v.Class, s.SafetyMode)
		if err != nil {
			continue
		}
		out = append(out, Fare{Vehicle: v, Price: price, Selected: v.Class == s.Vehicle})
	}
	return out
}

func toPoints(route []geo.Location) []polyline.Point {
	points := make([]polyline.Point, len(route))
	for i, l := range route {
		points[i] = polyline.Point{Lat: l.Lat, Lng: l.Lng}
	}
	return points
}
