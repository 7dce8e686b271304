package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/api/models"
	"github.com/swiftroute/swiftroute/internal/api/response"
	"github.com/swiftroute/swiftroute/internal/core"
	"github.com/swiftroute/swiftroute/internal/featureflags"
	"github.com/swiftroute/swiftroute/internal/grid"
)

// TrafficHandler handles grid edge toggles.
type TrafficHandler struct {
	core   *core.Core
	flags  *featureflags.Service
	logger zerolog.Logger
}

// NewTrafficHandler creates a new TrafficHandler.
func NewTrafficHandler(c *core.Core, flags *featureflags.Service, logger zerolog.Logger) *TrafficHandler {
	return &TrafficHandler{core: c, flags: flags, logger: logger}
}

// Toggle handles POST /v1/traffic/toggle. The grid changes only when the server
// broadcasts the new snapshot, so a 202 is returned.
func (h *TrafficHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	if err := h.flags.Require(r.Context(), featureflags.FlagDisableTrafficToggle); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req models.ToggleRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		invalid(w, r, errs)
		return
	}

	if err := h.core.ToggleEdge(r.Context(), grid.NodeID(*req.U), grid.NodeID(*req.V)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusAccepted, nil)
}
