package handler

import (
	"net/http"
	"sort"

	"github.com/swiftroute/swiftroute/internal/api/models"
	"github.com/swiftroute/swiftroute/internal/api/response"
	"github.com/swiftroute/swiftroute/internal/featureflags"
)

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	all := h.service.GetAllFlags(r.Context())

	list := featureflags.FlagList{Items: make([]featureflags.Flag, 0, len(all))}
	for _, flag := range all {
		list.Items = append(list.Items, *flag)
	}
	sort.Slice(list.Items, func(i, j int) bool { return list.Items[i].Key < list.Items[j].Key })
	response.JSON(w, r, http.StatusOK, list)
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags. Only known keys with boolean
// values are accepted; the whole batch is rejected otherwise.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var updates []featureflags.FlagUpdate
	if !decode(w, r, &updates) {
		return
	}

	var errs []models.FieldError
	for _, u := range updates {
		if !featureflags.IsKnown(u.Key) {
			errs = append(errs, models.FieldError{Field: u.Key, Message: "unknown feature flag", Code: "UNKNOWN_FLAG"})
			continue
		}
		if _, ok := u.Value.(bool); !ok {
			errs = append(errs, models.FieldError{Field: u.Key, Message: "value must be a boolean", Code: "INVALID_VALUE"})
		}
	}
	if len(errs) > 0 {
		invalid(w, r, errs)
		return
	}

	for _, u := range updates {
		if err := h.service.SetFlag(r.Context(), &featureflags.Flag{Key: u.Key, Value: u.Value}); err != nil {
			response.InternalError(w, r, "failed to store feature flag")
			return
		}
	}
	response.NoContent(w, r)
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}
