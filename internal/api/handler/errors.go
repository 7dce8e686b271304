package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/api/middleware"
	"github.com/swiftroute/swiftroute/internal/api/models"
	"github.com/swiftroute/swiftroute/internal/api/response"
	"github.com/swiftroute/swiftroute/internal/core"
	"github.com/swiftroute/swiftroute/internal/featureflags"
	"github.com/swiftroute/swiftroute/internal/geo"
	"github.com/swiftroute/swiftroute/internal/session"
	"github.com/swiftroute/swiftroute/internal/transport"
)

// maxBodyBytes caps intent bodies; none of them carry more than a few fields.
const maxBodyBytes = 4 << 10

// decode reads a JSON body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		response.BadRequest(w, r, "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

// writeError maps an intent error onto a problem response.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	var (
		stateErr    *session.StateError
		disabledErr *featureflags.DisabledError
	)
	switch {
	case errors.As(err, &stateErr):
		response.InvalidState(w, r, stateErr.Phase.String(), err.Error())
	case errors.Is(err, session.ErrInvalidState):
		response.InvalidState(w, r, "", err.Error())
	case errors.Is(err, session.ErrInvalidRole),
		errors.Is(err, session.ErrUnknownVehicle),
		errors.Is(err, session.ErrBlankOTP),
		errors.Is(err, geo.ErrInvalidLocation),
		errors.Is(err, core.ErrNoSuggestion):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, core.ErrUnknownField):
		response.NotFound(w, r, err.Error())
	case errors.As(err, &disabledErr):
		response.FeatureDisabled(w, r, disabledErr.Key, err.Error())
	case errors.Is(err, featureflags.ErrFeatureDisabled):
		response.FeatureDisabled(w, r, "", err.Error())
	case errors.Is(err, transport.ErrNotConnected),
		errors.Is(err, transport.ErrSendBufferFull),
		errors.Is(err, core.ErrStopped):
		response.ChannelUnavailable(w, r, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.ChannelUnavailable(w, r, "request abandoned before the client answered")
	default:
		logger.Error().Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("unexpected intent error")
		response.InternalError(w, r, "unexpected error")
	}
}

// invalid writes a 400 listing field errors.
func invalid(w http.ResponseWriter, r *http.Request, errs []models.FieldError) {
	response.BadRequest(w, r, "request validation failed", errs)
}
