// Package protocol defines the event contract between the client and the dispatch backend.
//
// Every frame on the channel is a JSON envelope {"event": name, "data": payload}.
// Payload types in this package validate themselves on decode so that a malformed push
// can be rejected before it reaches any state.
package protocol

import (
	"errors"
)

// ErrMalformedPayload is returned when a push payload cannot be decoded or fails validation.
var ErrMalformedPayload = errors.New("malformed payload")

// Client -> server commands.
const (
	EventJoinDriver    = "join_driver"
	EventJoinPassenger = "join_passenger"
	EventRequestRide   = "request_ride"
	EventVerifyOTP     = "verify_otp"
	EventRequestGrid   = "request_grid"
	EventToggleTraffic = "toggle_traffic"
)

// Server -> client pushes.
const (
	EventDriversUpdate = "drivers_update"
	EventLoginSuccess  = "login_success"
	EventRideConfirmed = "ride_confirmed"
	EventNewJob        = "new_job"
	EventOTPSuccess    = "otp_success"
	EventGameState     = "game_state"
	EventGridData      = "grid_data"
)

// PushEvents lists every server push the client understands.
var PushEvents = []string{
	EventDriversUpdate,
	EventLoginSuccess,
	EventRideConfirmed,
	EventNewJob,
	EventOTPSuccess,
	EventGameState,
	EventGridData,
}

// Role names as they appear on the wire.
const (
	RolePassenger = "passenger"
	RoleDriver    = "driver"
)
