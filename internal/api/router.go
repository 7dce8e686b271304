// Package api provides the local HTTP view surface of the client.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/api/handler"
	"github.com/swiftroute/swiftroute/internal/api/middleware"
	"github.com/swiftroute/swiftroute/internal/core"
	"github.com/swiftroute/swiftroute/internal/featureflags"
	"github.com/swiftroute/swiftroute/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version            string
	BuildTime          string
	Logger             zerolog.Logger
	ServiceName        string
	Metrics            *middleware.Metrics
	Core               *core.Core
	Providers          *resilience.Registry
	FeatureFlagService *featureflags.Service

	// ViewRateLimit overrides the polling limit for /v1/view and /v1/state.
	ViewRateLimit int
}

// NewRouter creates a new chi router with all view surface routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "swiftroute-client"
	}

	flags := cfg.FeatureFlagService
	if flags == nil {
		flags = featureflags.NewService(featureflags.ServiceConfig{Logger: cfg.Logger})
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Core:      cfg.Core,
		Providers: cfg.Providers,
		Flags:     flags,
		Logger:    cfg.Logger,
	})
	viewHandler := handler.NewViewHandler(cfg.Core, flags, cfg.Logger)
	sessionHandler := handler.NewSessionHandler(cfg.Core, flags, cfg.Logger)
	trafficHandler := handler.NewTrafficHandler(cfg.Core, flags, cfg.Logger)
	geocodeHandler := handler.NewGeocodeHandler(cfg.Core, flags, cfg.Logger)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(flags)

	viewLimit := middleware.ViewRateLimit
	if cfg.ViewRateLimit > 0 {
		viewLimit = middleware.PerMinute(cfg.ViewRateLimit)
	}
	viewRateLimit := middleware.RateLimitByIP(viewLimit)                    // 600 req/min
	intentRateLimit := middleware.RateLimitByIP(middleware.IntentRateLimit) // 60 req/min
	searchRateLimit := middleware.RateLimitByIP(middleware.SearchRateLimit) // 60 req/min

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Polled by the renderer
		r.Group(func(r chi.Router) {
			r.Use(viewRateLimit)
			r.Get("/view", viewHandler.Frame)
			r.Get("/state", viewHandler.State)
		})

		// Session intents
		r.Route("/session", func(r chi.Router) {
			r.Use(intentRateLimit)
			r.Post("/role", sessionHandler.ChooseRole)
			r.Post("/pickup", sessionHandler.SetPickup)
			r.Post("/drop", sessionHandler.SetDrop)
			r.Post("/vehicle", sessionHandler.SelectVehicle)
			r.Post("/safety", sessionHandler.SetSafetyMode)
			r.Post("/ride", sessionHandler.RequestRide)
			r.Post("/otp", sessionHandler.SubmitOTP)
			r.Post("/end", sessionHandler.EndTrip)
		})

		r.With(intentRateLimit).Post("/traffic/toggle", trafficHandler.Toggle)

		// Place search, debounced per field
		r.With(searchRateLimit).Get("/geocode/{field}", geocodeHandler.Search)

		// Admin endpoints - runtime feature switches
		r.Route("/admin/feature-flags", func(r chi.Router) {
			r.Use(intentRateLimit)
			r.Get("/", featureFlagsHandler.ListFeatureFlags)
			r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
			r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
		})
	})

	return r
}
