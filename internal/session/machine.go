// Package session implements the ride session state machine.
//
// A Machine is owned by a single goroutine. Every operation reads the state committed at
// the moment it is called, so an intent that depends on an earlier intent (a ride request
// after pickup and drop were set) always sees the latest values.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/geo"
	"github.com/swiftroute/swiftroute/internal/protocol"
)

// Predefined errors for session operations.
var (
	// ErrInvalidState is wrapped by every rejection caused by the current phase.
	ErrInvalidState = errors.New("invalid session state")

	// ErrInvalidRole is returned for a role other than passenger or driver.
	ErrInvalidRole = errors.New("invalid role")

	// ErrBlankOTP is returned when an OTP submission carries no code.
	ErrBlankOTP = errors.New("otp code is blank")
)

// StateError reports an operation the current phase does not allow.
type StateError struct {
	Op     string
	Phase  Phase
	Reason string
}

func (e *StateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s not allowed in phase %s: %s", e.Op, e.Phase, e.Reason)
	}
	return fmt.Sprintf("%s not allowed in phase %s", e.Op, e.Phase)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

// Emitter sends commands to the backend.
type Emitter interface {
	Send(ctx context.Context, event string, payload any) error
}

// Config configures a Machine.
type Config struct {
	Emitter Emitter
	Logger  zerolog.Logger
	// Location is the initial best-known device position. Defaults to geo.DefaultLocation.
	Location *geo.Location
}

// State is a value snapshot of the machine.
type State struct {
	Phase      Phase               `json:"phase"`
	Role       Role                `json:"role"`
	MyLocation geo.Location        `json:"my_location"`
	Pickup     *geo.Location       `json:"pickup,omitempty"`
	Drop       *geo.Location       `json:"drop,omitempty"`
	Vehicle    VehicleClass        `json:"vehicle,omitempty"`
	SafetyMode bool                `json:"safety_mode"`
	Match      *protocol.RideMatch `json:"match,omitempty"`
	Job        *protocol.DriverJob `json:"job,omitempty"`
}

// RideRequestInFlight reports whether a ride request awaits a match.
func (s State) RideRequestInFlight() bool {
	return s.Phase == PhaseRequesting
}

// TripActive reports whether a driver trip is in progress.
func (s State) TripActive() bool {
	return s.Phase == PhaseActiveTrip
}

// CanConfirm reports whether the ride confirmation action is available.
func (s State) CanConfirm() bool {
	return s.Vehicle != "" && s.Pickup != nil && s.Drop != nil
}

// Machine is the ride session state machine. It is not safe for concurrent use.
type Machine struct {
	emitter Emitter
	logger  zerolog.Logger

	phase      Phase
	role       Role
	myLocation geo.Location
	pickup     *geo.Location
	drop       *geo.Location
	vehicle    VehicleClass
	safety     bool
	match      *protocol.RideMatch
	job        *protocol.DriverJob
}

// NewMachine returns a machine in PhaseUnauthenticated.
func NewMachine(cfg Config) *Machine {
	loc := geo.DefaultLocation
	if cfg.Location != nil {
		loc = *cfg.Location
	}
	return &Machine{
		emitter:    cfg.Emitter,
		logger:     cfg.Logger.With().Str("component", "session").Logger(),
		myLocation: loc,
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	return m.phase
}

// Role returns the chosen role.
func (m *Machine) Role() Role {
	return m.role
}

// State returns a copy of the committed state.
func (m *Machine) State() State {
	s := State{
		Phase:      m.phase,
		Role:       m.role,
		MyLocation: m.myLocation,
		Pickup:     copyLocation(m.pickup),
		Drop:       copyLocation(m.drop),
		Vehicle:    m.vehicle,
		SafetyMode: m.safety,
	}
	if m.match != nil {
		match := *m.match
		match.Route = append([]geo.Location(nil), m.match.Route...)
		s.Match = &match
	}
	if m.job != nil {
		job := *m.job
		s.Job = &job
	}
	return s
}

// CanConfirm reports whether the ride confirmation action is available.
func (m *Machine) CanConfirm() bool {
	return m.vehicle != "" && m.pickup != nil && m.drop != nil
}

// SetMyLocation records the device's best-known position.
func (m *Machine) SetMyLocation(loc geo.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	m.myLocation = loc
	return nil
}

// ChooseRole joins the backend with the given role. The role is sticky: once chosen,
// later calls are ignored and return nil.
func (m *Machine) ChooseRole(ctx context.Context, role Role) error {
	if role != RolePassenger && role != RoleDriver {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	if m.phase != PhaseUnauthenticated {
		m.logger.Info().
			Str("requested", role.String()).
			Str("role", m.role.String()).
			Msg("role already chosen, ignoring")
		return nil
	}

	if err := m.emit(ctx, role.joinEvent(), m.myLocation); err != nil {
		return err
	}

	m.role = role
	m.phase = PhaseRoleChosen
	return nil
}

// ConfirmLogin applies login_success. A driver waiting for confirmation starts searching.
func (m *Machine) ConfirmLogin(role string) error {
	r, err := ParseRole(role)
	if err != nil {
		return err
	}
	if m.role == RoleUnset {
		return m.reject(protocol.EventLoginSuccess, "no role chosen")
	}
	if r != m.role {
		return m.reject(protocol.EventLoginSuccess, "role mismatch: confirmed "+r.String())
	}

	if m.role == RoleDriver && m.phase == PhaseRoleChosen {
		m.phase = PhaseSearching
	}
	return nil
}

// SetPickup records the pickup point.
func (m *Machine) SetPickup(loc geo.Location) error {
	if err := m.requireEditable("set_pickup"); err != nil {
		return err
	}
	if err := loc.Validate(); err != nil {
		return err
	}
	m.pickup = &loc
	m.advanceEndpoints()
	return nil
}

// SetDrop records the drop point.
func (m *Machine) SetDrop(loc geo.Location) error {
	if err := m.requireEditable("set_drop"); err != nil {
		return err
	}
	if err := loc.Validate(); err != nil {
		return err
	}
	m.drop = &loc
	m.advanceEndpoints()
	return nil
}

// SelectVehicle records the vehicle choice from the booking panel.
func (m *Machine) SelectVehicle(class VehicleClass) error {
	if err := m.requireEditable("select_vehicle"); err != nil {
		return err
	}
	if _, ok := LookupVehicle(class); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVehicle, class)
	}
	m.vehicle = class
	return nil
}

// SetSafetyMode toggles the safety option from the booking panel.
func (m *Machine) SetSafetyMode(on bool) error {
	if err := m.requireEditable("set_safety_mode"); err != nil {
		return err
	}
	m.safety = on
	return nil
}

// RequestRide emits request_ride with the pickup, drop and safety option committed right
// now. An empty class falls back to the selected vehicle and a nil safety uses the current
// selection. While a request is in flight it may be sent again with the same endpoints.
func (m *Machine) RequestRide(ctx context.Context, class VehicleClass, safety *bool) error {
	const op = "request_ride"
	if m.role != RolePassenger {
		return m.reject(op, "passenger role required")
	}
	if m.pickup == nil || m.drop == nil {
		return m.reject(op, "pickup and drop are required")
	}
	if m.phase != PhaseReadyToRequest && m.phase != PhaseRequesting {
		return m.reject(op, "")
	}
	if class == "" {
		class = m.vehicle
	}
	if _, ok := LookupVehicle(class); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVehicle, class)
	}
	on := m.safety
	if safety != nil {
		on = *safety
	}

	payload := protocol.RideRequestPayload{
		Pickup:     *m.pickup,
		Drop:       *m.drop,
		SafetyMode: on,
	}
	if err := m.emit(ctx, protocol.EventRequestRide, payload); err != nil {
		return err
	}

	m.vehicle = class
	m.safety = on
	m.phase = PhaseRequesting
	return nil
}

// OnMatched applies ride_confirmed.
func (m *Machine) OnMatched(match protocol.RideMatch) error {
	if m.phase != PhaseRequesting {
		return m.reject(protocol.EventRideConfirmed, "no ride request in flight")
	}
	m.match = &match
	m.phase = PhaseMatched
	return nil
}

// OnJobOffered applies new_job.
func (m *Machine) OnJobOffered(job protocol.DriverJob) error {
	if m.role != RoleDriver || m.phase != PhaseSearching {
		return m.reject(protocol.EventNewJob, "driver is not searching")
	}
	m.job = &job
	m.phase = PhaseJobOffered
	return nil
}

// SubmitOTP emits verify_otp for the current job.
func (m *Machine) SubmitOTP(ctx context.Context, code string) error {
	const op = "submit_otp"
	if m.phase != PhaseJobOffered {
		return m.reject(op, "no job offered")
	}
	if m.job == nil {
		return m.reject(op, "job is missing")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrBlankOTP
	}

	payload := protocol.VerifyOTPPayload{RideID: m.job.RideID, OTP: code}
	if err := m.emit(ctx, protocol.EventVerifyOTP, payload); err != nil {
		return err
	}

	m.phase = PhaseVerifyingOtp
	return nil
}

// OnOTPAccepted applies otp_success.
func (m *Machine) OnOTPAccepted() error {
	if m.phase != PhaseVerifyingOtp {
		return m.reject(protocol.EventOTPSuccess, "no otp awaiting verification")
	}
	m.job = nil
	m.phase = PhaseActiveTrip
	return nil
}

// EndTrip finishes the active trip and resets the session. Only the device location survives.
func (m *Machine) EndTrip() error {
	if m.phase != PhaseActiveTrip {
		return m.reject("end_trip", "no active trip")
	}
	m.reset()
	return nil
}

func (m *Machine) reset() {
	*m = Machine{
		emitter:    m.emitter,
		logger:     m.logger,
		myLocation: m.myLocation,
	}
}

func (m *Machine) requireEditable(op string) error {
	if m.role != RolePassenger {
		return m.reject(op, "passenger role required")
	}
	switch m.phase {
	case PhaseRoleChosen, PhaseSelectingEndpoints, PhaseReadyToRequest:
		return nil
	default:
		return m.reject(op, "ride already requested")
	}
}

func (m *Machine) advanceEndpoints() {
	if m.pickup != nil && m.drop != nil {
		m.phase = PhaseReadyToRequest
		return
	}
	m.phase = PhaseSelectingEndpoints
}

func (m *Machine) emit(ctx context.Context, event string, payload any) error {
	if m.emitter == nil {
		return errors.New("session has no emitter")
	}
	if err := m.emitter.Send(ctx, event, payload); err != nil {
		return fmt.Errorf("sending %s: %w", event, err)
	}
	m.logger.Debug().Str("event", event).Str("phase", m.phase.String()).Msg("command sent")
	return nil
}

func (m *Machine) reject(op, reason string) error {
	return &StateError{Op: op, Phase: m.phase, Reason: reason}
}

func copyLocation(l *geo.Location) *geo.Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
