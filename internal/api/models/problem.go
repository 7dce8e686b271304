package models

import (
	"encoding/json"
	"net/http"
)

// Problem is the RFC 7807 body the view surface answers with when it cannot carry out an
// intent. A renderer switches on Type; Phase and Feature say which session phase refused the
// intent or which feature flag switched it off.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Phase    string       `json:"phase,omitempty"`
	Feature  string       `json:"feature,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError points at one bad field of an intent body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemBase = "https://swiftroute.dev/problems/"

// Problem types.
const (
	ProblemTypeInvalidIntent      = problemBase + "invalid-intent"
	ProblemTypeFeatureDisabled    = problemBase + "feature-disabled"
	ProblemTypeNotFound           = problemBase + "not-found"
	ProblemTypeInvalidState       = problemBase + "invalid-state"
	ProblemTypeTooManyRequests    = problemBase + "too-many-requests"
	ProblemTypeInternal           = problemBase + "internal-error"
	ProblemTypeChannelUnavailable = problemBase + "channel-unavailable"
)

func newProblem(problemType, title string, status int, traceID, detail string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
		Detail:  detail,
	}
}

// Write sends the problem with its status and the request id header.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewInvalidIntent is a 400 for an intent body that cannot be applied as sent.
func NewInvalidIntent(traceID, detail string, errors []FieldError) *Problem {
	p := newProblem(ProblemTypeInvalidIntent, "Invalid intent", http.StatusBadRequest, traceID, detail)
	p.Errors = errors
	return p
}

// NewFeatureDisabled is a 403 for an intent whose feature flag is switched off.
func NewFeatureDisabled(traceID, feature, detail string) *Problem {
	p := newProblem(ProblemTypeFeatureDisabled, "Feature disabled", http.StatusForbidden, traceID, detail)
	p.Feature = feature
	return p
}

// NewNotFound is a 404 for an unknown route or search field.
func NewNotFound(traceID, detail string) *Problem {
	return newProblem(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID, detail)
}

// NewInvalidState is a 409 for an intent the ride session refused in its current phase.
func NewInvalidState(traceID, phase, detail string) *Problem {
	p := newProblem(ProblemTypeInvalidState, "Invalid state", http.StatusConflict, traceID, detail)
	p.Phase = phase
	return p
}

// NewTooManyRequests is a 429 from the view surface rate limits.
func NewTooManyRequests(traceID, detail string) *Problem {
	return newProblem(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID, detail)
}

// NewInternalError is a 500 for anything the client did not expect.
func NewInternalError(traceID, detail string) *Problem {
	return newProblem(ProblemTypeInternal, "Internal error", http.StatusInternalServerError, traceID, detail)
}

// NewChannelUnavailable is a 503 for an intent that could not reach the dispatch backend:
// the channel is down, its send buffer is full, or the core has stopped.
func NewChannelUnavailable(traceID, detail string) *Problem {
	return newProblem(ProblemTypeChannelUnavailable, "Channel unavailable", http.StatusServiceUnavailable, traceID, detail)
}
