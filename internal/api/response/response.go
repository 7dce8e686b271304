// Package response writes JSON and Problem+JSON bodies for the view surface.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/swiftroute/swiftroute/internal/api/middleware"
	"github.com/swiftroute/swiftroute/internal/api/models"
)

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes a Problem+JSON error response.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 for an intent that cannot be applied as sent.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewInvalidIntent(middleware.GetRequestID(r.Context()), detail, errors))
}

// FeatureDisabled writes a 403 naming the feature flag that switched the intent off.
func FeatureDisabled(w http.ResponseWriter, r *http.Request, feature, detail string) {
	Error(w, r, models.NewFeatureDisabled(middleware.GetRequestID(r.Context()), feature, detail))
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// InvalidState writes a 409 for an intent the session refused in the given phase.
func InvalidState(w http.ResponseWriter, r *http.Request, phase, detail string) {
	Error(w, r, models.NewInvalidState(middleware.GetRequestID(r.Context()), phase, detail))
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}

// ChannelUnavailable writes a 503 for an intent that could not reach the backend.
func ChannelUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewChannelUnavailable(middleware.GetRequestID(r.Context()), detail))
}

// NoContent writes a 204 No Content response.
// Includes X-Request-Id header for correlation.
func NoContent(w http.ResponseWriter, r *http.Request) {
	setRequestID(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
}
