// Package handler provides the HTTP handlers of the client view surface.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/api/models"
	"github.com/swiftroute/swiftroute/internal/api/response"
	"github.com/swiftroute/swiftroute/internal/core"
	"github.com/swiftroute/swiftroute/internal/featureflags"
	"github.com/swiftroute/swiftroute/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	core      *core.Core
	providers *resilience.Registry
	flags     *featureflags.Service
	logger    zerolog.Logger
}

// OpsConfig configures an OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string
	Core      *core.Core
	Providers *resilience.Registry
	Flags     *featureflags.Service
	Logger    zerolog.Logger
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		core:      cfg.Core,
		providers: cfg.Providers,
		flags:     cfg.Flags,
		logger:    cfg.Logger,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. The client is ready while its event
// channel is connected.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	status := http.StatusOK
	if !h.core.Ready() {
		health.Status = models.HealthStatusFail
		health.Details = map[string]interface{}{"channel": "disconnected"}
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - channel, grid and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.core.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status := models.SystemStatus{
		Status:                 models.HealthStatusOK,
		Time:                   models.Timestamp(time.Now()),
		Subsystems:             subsystems(snap),
		Providers:              h.providerStatuses(),
		ActiveDegradationFlags: h.activeFlags(r.Context()),
	}

	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}
	for _, p := range status.Providers {
		status.Status = worst(status.Status, p.Status)
	}
	if len(status.ActiveDegradationFlags) > 0 {
		status.Status = worst(status.Status, models.HealthStatusDegraded)
	}
	response.JSON(w, r, http.StatusOK, status)
}

func subsystems(snap core.Snapshot) []models.SubsystemStatus {
	channel := models.SubsystemStatus{Name: "channel", Status: models.HealthStatusOK}
	if !snap.Connected {
		channel.Status = models.HealthStatusFail
		channel.Detail = strPtr("disconnected")
	}

	grid := models.SubsystemStatus{Name: "grid", Status: models.HealthStatusOK}
	switch {
	case snap.Stale:
		grid.Status = models.HealthStatusDegraded
		grid.Detail = strPtr("stale until the next grid snapshot")
	case snap.Grid.Revision == 0:
		grid.Status = models.HealthStatusDegraded
		grid.Detail = strPtr("awaiting first grid snapshot")
	}

	location := models.SubsystemStatus{Name: "location", Status: models.HealthStatusOK}
	switch {
	case !snap.LocationResolved:
		location.Status = models.HealthStatusDegraded
		location.Detail = strPtr("pending")
	case snap.LocationFallback:
		location.Status = models.HealthStatusDegraded
		location.Detail = strPtr("using fallback location")
	}

	return []models.SubsystemStatus{channel, grid, location}
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.providers == nil {
		return []models.ProviderStatus{}
	}

	all := h.providers.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, p := range all {
		ps := models.ProviderStatus{Provider: p.Name, Status: models.HealthStatusOK}
		switch {
		case p.IsUnhealthy():
			ps.Status = models.HealthStatusFail
		case p.IsDegraded():
			ps.Status = models.HealthStatusDegraded
		}
		if p.LastSuccessAt != nil {
			ts := models.Timestamp(*p.LastSuccessAt)
			ps.LastSuccessAt = &ts
		}
		if p.LastFailureAt != nil {
			ts := models.Timestamp(*p.LastFailureAt)
			ps.LastFailureAt = &ts
		}
		if p.LastError != "" {
			ps.Message = strPtr(p.LastError)
		}
		out = append(out, ps)
	}
	return out
}

func (h *OpsHandler) activeFlags(ctx context.Context) []string {
	if h.flags == nil {
		return nil
	}
	var active []string
	for key, flag := range h.flags.GetAllFlags(ctx) {
		if flag.BoolValue(false) {
			active = append(active, key)
		}
	}
	sort.Strings(active)
	return active
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func strPtr(s string) *string {
	return &s
}
