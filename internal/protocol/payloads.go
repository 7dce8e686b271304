package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/swiftroute/swiftroute/internal/geo"
	"github.com/swiftroute/swiftroute/pkg/polyline"
)

// RideRequestPayload is the body of request_ride.
type RideRequestPayload struct {
	Pickup     geo.Location `json:"pickup"`
	Drop       geo.Location `json:"drop"`
	SafetyMode bool         `json:"safety_mode"`
}

// VerifyOTPPayload is the body of verify_otp.
type VerifyOTPPayload struct {
	RideID ID     `json:"ride_id"`
	OTP    string `json:"otp"`
}

// ToggleTrafficPayload is the body of toggle_traffic. Ids are sent exactly as the user picked them.
type ToggleTrafficPayload struct {
	U int `json:"u"`
	V int `json:"v"`
}

// LoginSuccess is the body of login_success.
type LoginSuccess struct {
	Role string `json:"role"`
}

// Validate checks the role is one the client knows.
func (l LoginSuccess) Validate() error {
	if l.Role != RoleDriver && l.Role != RolePassenger {
		return fmt.Errorf("%w: unknown role %q", ErrMalformedPayload, l.Role)
	}
	return nil
}

// DriverRef identifies the driver assigned to a ride.
type DriverRef struct {
	ID ID `json:"id"`
}

// RideMatch is the body of ride_confirmed.
type RideMatch struct {
	RideID  ID             `json:"ride_id"`
	OTP     string         `json:"otp"`
	Driver  DriverRef      `json:"driver"`
	Price   float64        `json:"price"`
	Message string         `json:"message"`
	Route   []geo.Location `json:"route,omitempty"`
}

type rideMatchWire struct {
	RideID  ID              `json:"ride_id"`
	OTP     json.RawMessage `json:"otp"`
	Driver  DriverRef       `json:"driver"`
	Price   float64         `json:"price"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Route   json.RawMessage `json:"route"`
}

// UnmarshalJSON accepts msg as an alias for message, a numeric or string otp and any
// supported route encoding.
func (m *RideMatch) UnmarshalJSON(b []byte) error {
	var w rideMatchWire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: ride_confirmed: %v", ErrMalformedPayload, err)
	}

	otp, err := decodeOTP(w.OTP)
	if err != nil {
		return err
	}
	route, err := DecodeRoute(w.Route)
	if err != nil {
		return err
	}

	*m = RideMatch{
		RideID:  w.RideID,
		OTP:     otp,
		Driver:  w.Driver,
		Price:   w.Price,
		Message: firstNonEmpty(w.Message, w.Msg),
		Route:   route,
	}
	return nil
}

// Validate checks the fields the client relies on.
func (m RideMatch) Validate() error {
	if m.RideID.IsZero() {
		return fmt.Errorf("%w: ride_confirmed without ride_id", ErrMalformedPayload)
	}
	if m.Driver.ID.IsZero() {
		return fmt.Errorf("%w: ride_confirmed without driver id", ErrMalformedPayload)
	}
	return validatePrice(m.Price)
}

// DriverJob is the body of new_job.
type DriverJob struct {
	RideID  ID      `json:"ride_id"`
	Price   float64 `json:"price"`
	Message string  `json:"message"`
}

// UnmarshalJSON accepts msg as an alias for message.
func (j *DriverJob) UnmarshalJSON(b []byte) error {
	var w struct {
		RideID  ID      `json:"ride_id"`
		Price   float64 `json:"price"`
		Message string  `json:"message"`
		Msg     string  `json:"msg"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: new_job: %v", ErrMalformedPayload, err)
	}
	*j = DriverJob{RideID: w.RideID, Price: w.Price, Message: firstNonEmpty(w.Message, w.Msg)}
	return nil
}

// Validate checks the job carries a ride id and a sane price.
func (j DriverJob) Validate() error {
	if j.RideID.IsZero() {
		return fmt.Errorf("%w: new_job without ride_id", ErrMalformedPayload)
	}
	return validatePrice(j.Price)
}

// Vehicle is a single roster entry from drivers_update or game_state.
type Vehicle struct {
	ID         ID      `json:"id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	TargetNode *int    `json:"target_node,omitempty"`
	Moving     bool    `json:"moving"`
}

// UnmarshalJSON accepts targetNode as an alias for target_node.
func (v *Vehicle) UnmarshalJSON(b []byte) error {
	var w struct {
		ID              ID      `json:"id"`
		Lat             float64 `json:"lat"`
		Lng             float64 `json:"lng"`
		TargetNode      *int    `json:"target_node"`
		TargetNodeCamel *int    `json:"targetNode"`
		Moving          bool    `json:"moving"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: vehicle: %v", ErrMalformedPayload, err)
	}
	target := w.TargetNode
	if target == nil {
		target = w.TargetNodeCamel
	}
	*v = Vehicle{ID: w.ID, Lat: w.Lat, Lng: w.Lng, TargetNode: target, Moving: w.Moving}
	return nil
}

// Validate checks id and position.
func (v Vehicle) Validate() error {
	if v.ID.IsZero() {
		return fmt.Errorf("%w: vehicle without id", ErrMalformedPayload)
	}
	if err := (geo.Location{Lat: v.Lat, Lng: v.Lng}).Validate(); err != nil {
		return fmt.Errorf("%w: vehicle %s: %v", ErrMalformedPayload, v.ID, err)
	}
	return nil
}

// GameState is the body of game_state.
type GameState struct {
	Cars []Vehicle `json:"cars"`
}

// GridData is the body of grid_data. Node ids arrive as JSON object keys and are parsed to ints.
type GridData struct {
	Nodes map[int]geo.Location
	Edges map[int]map[int]float64
}

// UnmarshalJSON parses the string-keyed maps of the wire format.
func (g *GridData) UnmarshalJSON(b []byte) error {
	var w struct {
		Nodes map[string]geo.Location       `json:"nodes"`
		Edges map[string]map[string]float64 `json:"edges"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: grid_data: %v", ErrMalformedPayload, err)
	}
	if w.Nodes == nil {
		return fmt.Errorf("%w: grid_data without nodes", ErrMalformedPayload)
	}

	nodes := make(map[int]geo.Location, len(w.Nodes))
	for key, loc := range w.Nodes {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("%w: grid_data node id %q", ErrMalformedPayload, key)
		}
		nodes[id] = loc
	}

	edges := make(map[int]map[int]float64, len(w.Edges))
	for key, neighbours := range w.Edges {
		u, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("%w: grid_data edge source %q", ErrMalformedPayload, key)
		}
		row := make(map[int]float64, len(neighbours))
		for nkey, weight := range neighbours {
			v, err := strconv.Atoi(nkey)
			if err != nil {
				return fmt.Errorf("%w: grid_data edge target %q", ErrMalformedPayload, nkey)
			}
			row[v] = weight
		}
		edges[u] = row
	}

	*g = GridData{Nodes: nodes, Edges: edges}
	return nil
}

// DecodeRoute accepts [[lat,lng],...], [{"lat":..,"lng":..},...] or an encoded polyline string.
// A missing or null route decodes to nil.
func DecodeRoute(raw json.RawMessage) ([]geo.Location, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var route []geo.Location
	switch raw[0] {
	case '"':
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("%w: route: %v", ErrMalformedPayload, err)
		}
		points, err := polyline.Decode(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: route: %v", ErrMalformedPayload, err)
		}
		for _, p := range points {
			route = append(route, geo.Location{Lat: p.Lat, Lng: p.Lng})
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: route: %v", ErrMalformedPayload, err)
		}
		for _, item := range items {
			loc, err := decodeRoutePoint(item)
			if err != nil {
				return nil, err
			}
			route = append(route, loc)
		}
	default:
		return nil, fmt.Errorf("%w: route must be an array or encoded polyline", ErrMalformedPayload)
	}

	for i, loc := range route {
		if err := loc.Validate(); err != nil {
			return nil, fmt.Errorf("%w: route point %d: %v", ErrMalformedPayload, i, err)
		}
	}
	return route, nil
}

func decodeRoutePoint(raw json.RawMessage) (geo.Location, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var pair []float64
		if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
			return geo.Location{}, fmt.Errorf("%w: route point must be [lat, lng]", ErrMalformedPayload)
		}
		return geo.Location{Lat: pair[0], Lng: pair[1]}, nil
	}

	var loc geo.Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return geo.Location{}, fmt.Errorf("%w: route point: %v", ErrMalformedPayload, err)
	}
	return loc, nil
}

func decodeOTP(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var id ID
	if err := id.UnmarshalJSON(raw); err != nil {
		return "", fmt.Errorf("%w: otp must be a number or string", ErrMalformedPayload)
	}
	return id.String(), nil
}

func validatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return fmt.Errorf("%w: invalid price %v", ErrMalformedPayload, price)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// DecodeRoster accepts the drivers_update body, either a bare array of vehicles or an
// object carrying them under "cars".
func DecodeRoster(raw json.RawMessage) ([]Vehicle, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty roster", ErrMalformedPayload)
	}

	if raw[0] == '{' {
		var gs GameState
		if err := json.Unmarshal(raw, &gs); err != nil {
			return nil, fmt.Errorf("%w: roster: %v", ErrMalformedPayload, err)
		}
		if gs.Cars == nil {
			return nil, fmt.Errorf("%w: roster object without cars", ErrMalformedPayload)
		}
		return gs.Cars, nil
	}

	var vehicles []Vehicle
	if err := json.Unmarshal(raw, &vehicles); err != nil {
		return nil, fmt.Errorf("%w: roster: %v", ErrMalformedPayload, err)
	}
	if vehicles == nil {
		return nil, fmt.Errorf("%w: roster is null", ErrMalformedPayload)
	}
	return vehicles, nil
}
