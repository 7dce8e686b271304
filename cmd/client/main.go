// Package main provides the entrypoint for the SwiftRoute client.
//
// The client keeps one session with the dispatch backend and serves the projected view on a
// local HTTP port for a renderer to poll.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/api"
	"github.com/swiftroute/swiftroute/internal/api/middleware"
	"github.com/swiftroute/swiftroute/internal/config"
	"github.com/swiftroute/swiftroute/internal/core"
	"github.com/swiftroute/swiftroute/internal/featureflags"
	"github.com/swiftroute/swiftroute/internal/geocode/nominatim"
	"github.com/swiftroute/swiftroute/internal/location"
	"github.com/swiftroute/swiftroute/internal/location/ipgeo"
	"github.com/swiftroute/swiftroute/internal/provider/resilience"
	"github.com/swiftroute/swiftroute/internal/telemetry"
	"github.com/swiftroute/swiftroute/internal/transport"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "swiftroute-client"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load(os.Getenv("SWIFTROUTE_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Environment == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Str("server_url", cfg.Server.URL).
		Msg("starting SwiftRoute client")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	log = log.With().Str("instance_id", tp.InstanceID).Logger()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// External providers share one health registry
	registry := resilience.NewRegistry()

	var locator location.Provider
	switch cfg.Location.Mode {
	case config.LocationIP:
		locator = ipgeo.NewClient(ipgeo.ClientConfig{
			Endpoint:  cfg.Location.Endpoint,
			Timeout:   cfg.Location.Timeout,
			UserAgent: cfg.Geocode.UserAgent,
			Registry:  registry,
			Logger:    log,
		})
	case config.LocationStatic:
		locator = location.Static{Location: cfg.Location.Static}
	}
	log.Info().Str("mode", cfg.Location.Mode).Msg("location provider configured")

	geocoder := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:   cfg.Geocode.BaseURL,
		Timeout:   cfg.Geocode.Timeout,
		UserAgent: cfg.Geocode.UserAgent,
		Registry:  registry,
		Logger:    log,
	})

	// Feature flags seeded from configuration
	seeded, unknown := featureflags.Seed(cfg.DisabledFeatures)
	for _, key := range unknown {
		log.Warn().Str("flag", key).Msg("ignoring unknown feature flag")
	}
	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepositoryWithFlags(seeded),
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})
	log.Info().Strs("disabled", cfg.DisabledFeatures).Msg("feature flags service initialized")

	// Event channel and the core that owns all client state
	channel := transport.NewClient(transport.ClientConfig{
		URL:            cfg.Server.URL,
		InitialBackoff: cfg.Server.InitialBackoff,
		MaxBackoff:     cfg.Server.MaxBackoff,
		PongWait:       cfg.Server.PongWait,
		Logger:         log,
	})

	dispatch, err := core.New(core.Config{
		Port:            channel,
		Location:        locator,
		LocationTimeout: cfg.Location.Timeout,
		Geocoder:        geocoder,
		GeocodeDebounce: cfg.Geocode.Debounce,
		GeocodeLimit:    cfg.Geocode.Limit,
		Meter:           tp.Meter,
		Logger:          log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create core")
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		Core:               dispatch,
		Providers:          registry,
		FeatureFlagService: ffService,
		ViewRateLimit:      cfg.View.RequestsPerMin,
	})

	server := &http.Server{
		Addr:         ":" + cfg.View.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := dispatch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("core stopped")
		}
	}()
	go func() {
		defer wg.Done()
		if err := channel.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("channel stopped")
		}
	}()

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("view surface listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down client")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	wg.Wait()

	log.Info().Msg("client stopped")
}
