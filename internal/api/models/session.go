package models

import "github.com/swiftroute/swiftroute/internal/geo"

// RoleRequest is the body of POST /v1/session/role.
type RoleRequest struct {
	Role string `json:"role"`
}

// LocationRequest is the body of POST /v1/session/pickup and /drop.
//
// Either Lat and Lng are given, or Suggestion picks an entry from the field's
// latest search results.
type LocationRequest struct {
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
	Suggestion *int     `json:"suggestion,omitempty"`
}

// Validate checks that exactly one form was used.
func (r LocationRequest) Validate() []FieldError {
	var errs []FieldError
	hasPoint := r.Lat != nil || r.Lng != nil
	switch {
	case hasPoint && r.Suggestion != nil:
		errs = append(errs, FieldError{Field: "suggestion", Message: "cannot be combined with lat/lng", Code: "CONFLICT"})
	case r.Suggestion != nil:
		if *r.Suggestion < 0 {
			errs = append(errs, FieldError{Field: "suggestion", Message: "must not be negative", Code: "OUT_OF_RANGE"})
		}
	default:
		if r.Lat == nil {
			errs = append(errs, FieldError{Field: "lat", Message: "required", Code: "REQUIRED"})
		}
		if r.Lng == nil {
			errs = append(errs, FieldError{Field: "lng", Message: "required", Code: "REQUIRED"})
		}
		if len(errs) == 0 {
			if err := r.Location().Validate(); err != nil {
				errs = append(errs, FieldError{Field: "lat,lng", Message: err.Error(), Code: "OUT_OF_RANGE"})
			}
		}
	}
	return errs
}

// Location returns the explicit point. Only meaningful when Lat and Lng are set.
func (r LocationRequest) Location() geo.Location {
	var l geo.Location
	if r.Lat != nil {
		l.Lat = *r.Lat
	}
	if r.Lng != nil {
		l.Lng = *r.Lng
	}
	return l
}

// VehicleRequest is the body of POST /v1/session/vehicle.
type VehicleRequest struct {
	Vehicle string `json:"vehicle"`
}

// SafetyRequest is the body of POST /v1/session/safety.
type SafetyRequest struct {
	Enabled bool `json:"enabled"`
}

// RideRequest is the body of POST /v1/session/ride. Empty fields fall back to the
// current selection.
type RideRequest struct {
	Vehicle    string `json:"vehicle,omitempty"`
	SafetyMode *bool  `json:"safety_mode,omitempty"`
}

// OTPRequest is the body of POST /v1/session/otp.
type OTPRequest struct {
	OTP string `json:"otp"`
}

// ToggleRequest is the body of POST /v1/traffic/toggle.
type ToggleRequest struct {
	U *int `json:"u"`
	V *int `json:"v"`
}

// Validate checks both endpoints are present and distinct.
func (r ToggleRequest) Validate() []FieldError {
	var errs []FieldError
	if r.U == nil {
		errs = append(errs, FieldError{Field: "u", Message: "required", Code: "REQUIRED"})
	}
	if r.V == nil {
		errs = append(errs, FieldError{Field: "v", Message: "required", Code: "REQUIRED"})
	}
	if len(errs) == 0 && *r.U == *r.V {
		errs = append(errs, FieldError{Field: "v", Message: "must differ from u", Code: "SELF_LOOP"})
	}
	return errs
}

// SearchResponse is the body of GET /v1/geocode/{field}.
type SearchResponse struct {
	Field       string             `json:"field"`
	Query       string             `json:"query"`
	Suggestions []SuggestionOption `json:"suggestions"`
}

// SuggestionOption is one numbered search result.
type SuggestionOption struct {
	Index       int          `json:"index"`
	Label       string       `json:"label"`
	FullAddress string       `json:"full_address"`
	Location    geo.Location `json:"location"`
}
