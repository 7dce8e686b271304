package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/api/response"
	"github.com/swiftroute/swiftroute/internal/core"
	"github.com/swiftroute/swiftroute/internal/featureflags"
	"github.com/swiftroute/swiftroute/internal/view"
)

// ViewHandler serves the state a renderer polls.
type ViewHandler struct {
	core   *core.Core
	flags  *featureflags.Service
	logger zerolog.Logger
}

// NewViewHandler creates a new ViewHandler.
func NewViewHandler(c *core.Core, flags *featureflags.Service, logger zerolog.Logger) *ViewHandler {
	return &ViewHandler{core: c, flags: flags, logger: logger}
}

// Frame handles GET /v1/view - the projected frame.
func (h *ViewHandler) Frame(w http.ResponseWriter, r *http.Request) {
	snap, err := h.core.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	frame := view.Project(snap)
	if h.flags.IsSafetyModeDisabled(r.Context()) {
		frame.SafetyMode = false
		frame.SafetyAvailable = false
	}
	frame.TrafficToggleAvailable = !h.flags.IsTrafficToggleDisabled(r.Context())
	frame.SearchAvailable = !h.flags.IsGeocodeDisabled(r.Context())
	response.JSON(w, r, http.StatusOK, frame)
}

// State handles GET /v1/state - the raw snapshot.
func (h *ViewHandler) State(w http.ResponseWriter, r *http.Request) {
	snap, err := h.core.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, snap)
}
