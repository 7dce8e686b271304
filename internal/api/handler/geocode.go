package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/api/models"
	"github.com/swiftroute/swiftroute/internal/api/response"
	"github.com/swiftroute/swiftroute/internal/core"
	"github.com/swiftroute/swiftroute/internal/featureflags"
	"github.com/swiftroute/swiftroute/internal/geocode"
)

// GeocodeHandler serves the pickup and drop searches.
type GeocodeHandler struct {
	core   *core.Core
	flags  *featureflags.Service
	logger zerolog.Logger
}

// NewGeocodeHandler creates a new GeocodeHandler.
func NewGeocodeHandler(c *core.Core, flags *featureflags.Service, logger zerolog.Logger) *GeocodeHandler {
	return &GeocodeHandler{core: c, flags: flags, logger: logger}
}

// Search handles GET /v1/geocode/{field}?q=. A request overtaken by a newer one for the
// same field gets 204 and no body.
func (h *GeocodeHandler) Search(w http.ResponseWriter, r *http.Request) {
	field, err := core.ParseField(chi.URLParam(r, "field"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.flags.Require(r.Context(), featureflags.FlagDisableGeocode); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	query := r.URL.Query().Get("q")
	suggestions, err := h.core.Search(r.Context(), field, query)
	if errors.Is(err, geocode.ErrSuperseded) {
		response.NoContent(w, r)
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	options := make([]models.SuggestionOption, len(suggestions))
	for i, s := range suggestions {
		options[i] = models.SuggestionOption{
			Index:       i,
			Label:       s.Label,
			FullAddress: s.FullAddress,
			Location:    s.Location,
		}
	}
	response.JSON(w, r, http.StatusOK, models.SearchResponse{
		Field:       string(field),
		Query:       query,
		Suggestions: options,
	})
}
