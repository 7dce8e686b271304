package handler

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/api/models"
	"github.com/swiftroute/swiftroute/internal/api/response"
	"github.com/swiftroute/swiftroute/internal/core"
	"github.com/swiftroute/swiftroute/internal/featureflags"
	"github.com/swiftroute/swiftroute/internal/session"
)

// SessionHandler turns session intents into core calls.
type SessionHandler struct {
	core   *core.Core
	flags  *featureflags.Service
	logger zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(c *core.Core, flags *featureflags.Service, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{core: c, flags: flags, logger: logger}
}

// ChooseRole handles POST /v1/session/role.
func (h *SessionHandler) ChooseRole(w http.ResponseWriter, r *http.Request) {
	var req models.RoleRequest
	if !decode(w, r, &req) {
		return
	}
	role, err := session.ParseRole(req.Role)
	if err != nil {
		invalid(w, r, []models.FieldError{{Field: "role", Message: "must be passenger or driver", Code: "INVALID_ROLE"}})
		return
	}
	h.finish(w, r, h.core.ChooseRole(r.Context(), role))
}

// SetPickup handles POST /v1/session/pickup.
func (h *SessionHandler) SetPickup(w http.ResponseWriter, r *http.Request) {
	h.setEndpoint(w, r, core.FieldPickup)
}

// SetDrop handles POST /v1/session/drop.
func (h *SessionHandler) SetDrop(w http.ResponseWriter, r *http.Request) {
	h.setEndpoint(w, r, core.FieldDrop)
}

func (h *SessionHandler) setEndpoint(w http.ResponseWriter, r *http.Request, field core.Field) {
	var req models.LocationRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		invalid(w, r, errs)
		return
	}

	var err error
	switch {
	case req.Suggestion != nil:
		err = h.core.ChooseSuggestion(r.Context(), field, *req.Suggestion)
	case field == core.FieldPickup:
		err = h.core.SetPickup(r.Context(), req.Location())
	default:
		err = h.core.SetDrop(r.Context(), req.Location())
	}
	h.finish(w, r, err)
}

// SelectVehicle handles POST /v1/session/vehicle.
func (h *SessionHandler) SelectVehicle(w http.ResponseWriter, r *http.Request) {
	var req models.VehicleRequest
	if !decode(w, r, &req) {
		return
	}
	h.finish(w, r, h.core.SelectVehicle(r.Context(), session.VehicleClass(req.Vehicle)))
}

// SetSafetyMode handles POST /v1/session/safety.
func (h *SessionHandler) SetSafetyMode(w http.ResponseWriter, r *http.Request) {
	var req models.SafetyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Enabled {
		if err := h.flags.Require(r.Context(), featureflags.FlagDisableSafetyMode); err != nil {
			writeError(w, r, h.logger, fmt.Errorf("safety mode: %w", err))
			return
		}
	}
	h.finish(w, r, h.core.SetSafetyMode(r.Context(), req.Enabled))
}

// RequestRide handles POST /v1/session/ride. Without safety_mode the session's current
// selection is used; a disabled safety feature always sends it off.
func (h *SessionHandler) RequestRide(w http.ResponseWriter, r *http.Request) {
	var req models.RideRequest
	if !decode(w, r, &req) {
		return
	}

	safety := req.SafetyMode
	if h.flags.IsSafetyModeDisabled(r.Context()) {
		off := false
		safety = &off
	}
	h.finish(w, r, h.core.RequestRide(r.Context(), session.VehicleClass(req.Vehicle), safety))
}

// SubmitOTP handles POST /v1/session/otp.
func (h *SessionHandler) SubmitOTP(w http.ResponseWriter, r *http.Request) {
	var req models.OTPRequest
	if !decode(w, r, &req) {
		return
	}
	h.finish(w, r, h.core.SubmitOTP(r.Context(), req.OTP))
}

// EndTrip handles POST /v1/session/end.
func (h *SessionHandler) EndTrip(w http.ResponseWriter, r *http.Request) {
	h.finish(w, r, h.core.EndTrip(r.Context()))
}

func (h *SessionHandler) finish(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.NoContent(w, r)
}
