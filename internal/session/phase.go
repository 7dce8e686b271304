package session

import (
	"fmt"

	"github.com/swiftroute/swiftroute/internal/protocol"
)

// Phase is the lifecycle position of a session.
type Phase int

// Session phases. Passenger sessions move through RoleChosen, SelectingEndpoints,
// ReadyToRequest, Requesting and Matched. Driver sessions move through RoleChosen,
// Searching, JobOffered, VerifyingOtp and ActiveTrip. Ending a trip resets to Unauthenticated.
const (
	PhaseUnauthenticated Phase = iota
	PhaseRoleChosen
	PhaseSelectingEndpoints
	PhaseReadyToRequest
	PhaseRequesting
	PhaseMatched
	PhaseSearching
	PhaseJobOffered
	PhaseVerifyingOtp
	PhaseActiveTrip
)

var phaseNames = map[Phase]string{
	PhaseUnauthenticated:    "unauthenticated",
	PhaseRoleChosen:         "role_chosen",
	PhaseSelectingEndpoints: "selecting_endpoints",
	PhaseReadyToRequest:     "ready_to_request",
	PhaseRequesting:         "requesting",
	PhaseMatched:            "matched",
	PhaseSearching:          "searching",
	PhaseJobOffered:         "job_offered",
	PhaseVerifyingOtp:       "verifying_otp",
	PhaseActiveTrip:         "active_trip",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText encodes the phase name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for phase, name := range phaseNames {
		if name == string(b) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Role is the session's fixed perspective.
type Role int

// Roles.
const (
	RoleUnset Role = iota
	RolePassenger
	RoleDriver
)

func (r Role) String() string {
	switch r {
	case RolePassenger:
		return protocol.RolePassenger
	case RoleDriver:
		return protocol.RoleDriver
	default:
		return "unset"
	}
}

// MarshalText encodes the role name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name, including "unset".
func (r *Role) UnmarshalText(b []byte) error {
	if string(b) == RoleUnset.String() {
		*r = RoleUnset
		return nil
	}
	role, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// ParseRole maps a wire role name to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case protocol.RolePassenger:
		return RolePassenger, nil
	case protocol.RoleDriver:
		return RoleDriver, nil
	default:
		return RoleUnset, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

func (r Role) joinEvent() string {
	if r == RoleDriver {
		return protocol.EventJoinDriver
	}
	return protocol.EventJoinPassenger
}
