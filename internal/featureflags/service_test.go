package featureflags_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/featureflags"
)

func newService(repo featureflags.Repository, ttl time.Duration) *featureflags.Service {
	return featureflags.NewService(featureflags.ServiceConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
		CacheTTL:   ttl,
	})
}

func TestService_GetFlag(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository(), time.Minute)
	ctx := context.Background()

	flag := service.GetFlag(ctx, featureflags.FlagDisableGeocode)
	if flag == nil {
		t.Fatal("expected flag to be returned")
	}
	if flag.Key != featureflags.FlagDisableGeocode {
		t.Errorf("expected key %q, got %q", featureflags.FlagDisableGeocode, flag.Key)
	}
	if flag.BoolValue(true) {
		t.Error("expected disable_geocode to be false by default")
	}
}

func TestService_SetFlag(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository(), time.Minute)
	ctx := context.Background()

	err := service.SetFlag(ctx, &featureflags.Flag{
		Key:   featureflags.FlagDisableTrafficToggle,
		Value: true,
	})
	if err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}

	if !service.IsTrafficToggleDisabled(ctx) {
		t.Error("expected traffic toggle to be disabled after update")
	}
	err = service.Require(ctx, featureflags.FlagDisableTrafficToggle)
	if !errors.Is(err, featureflags.ErrFeatureDisabled) {
		t.Errorf("expected ErrFeatureDisabled, got %v", err)
	}
	var disabled *featureflags.DisabledError
	if !errors.As(err, &disabled) || disabled.Key != featureflags.FlagDisableTrafficToggle {
		t.Errorf("expected DisabledError for %s, got %v", featureflags.FlagDisableTrafficToggle, err)
	}
}

func TestService_GetAllFlags(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository(), time.Minute)
	flags := service.GetAllFlags(context.Background())

	for _, key := range featureflags.Keys() {
		if _, ok := flags[key]; !ok {
			t.Errorf("expected flag %q to be present", key)
		}
	}
}

func TestService_InvalidateCache(t *testing.T) {
	repo := featureflags.NewInMemoryRepository()
	service := newService(repo, time.Hour)
	ctx := context.Background()

	_ = service.GetFlag(ctx, featureflags.FlagDisableSafetyMode)

	_ = repo.SetFlag(ctx, &featureflags.Flag{
		Key:   featureflags.FlagDisableSafetyMode,
		Value: true,
	})

	if service.IsSafetyModeDisabled(ctx) {
		t.Error("expected cached value before invalidation")
	}

	service.InvalidateCache()

	if !service.IsSafetyModeDisabled(ctx) {
		t.Error("expected updated value after cache invalidation")
	}
}

func TestService_NilRepositoryUsesDefaults(t *testing.T) {
	flags, _ := featureflags.Seed([]string{featureflags.FlagDisableGeocode})
	service := featureflags.NewService(featureflags.ServiceConfig{
		Logger:       zerolog.Nop(),
		DefaultFlags: flags,
	})
	ctx := context.Background()

	if !service.IsGeocodeDisabled(ctx) {
		t.Error("expected seeded flag to be set")
	}
	if service.IsSafetyModeDisabled(ctx) {
		t.Error("expected unseeded flag to be clear")
	}
}

func TestService_NilService(t *testing.T) {
	var service *featureflags.Service
	if err := service.Require(context.Background(), featureflags.FlagDisableGeocode); err != nil {
		t.Errorf("expected nil service to allow everything, got %v", err)
	}
}

func TestSeed(t *testing.T) {
	flags, unknown := featureflags.Seed([]string{featureflags.FlagDisableSafetyMode, "disable_teleport"})

	if !flags[featureflags.FlagDisableSafetyMode].BoolValue(false) {
		t.Error("expected disable_safety_mode to be seeded on")
	}
	if flags[featureflags.FlagDisableGeocode].BoolValue(true) {
		t.Error("expected disable_geocode to stay off")
	}
	if len(unknown) != 1 || unknown[0] != "disable_teleport" {
		t.Errorf("expected unknown key to be reported, got %v", unknown)
	}
	if featureflags.IsKnown("disable_teleport") {
		t.Error("expected disable_teleport to be unknown")
	}
}

func TestFlag_BoolValue(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		def   bool
		want  bool
	}{
		{"boolean true", true, false, true},
		{"boolean false", false, true, false},
		{"non-zero number", 42.5, false, true},
		{"zero number", float64(0), true, false},
		{"string on", "on", false, true},
		{"string false", "false", true, false},
		{"other string", "maybe", true, true},
		{"nil value", nil, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := &featureflags.Flag{Key: "test", Value: tt.value, UpdatedAt: time.Now()}
			if got := flag.BoolValue(tt.def); got != tt.want {
				t.Errorf("BoolValue() = %v, want %v", got, tt.want)
			}
		})
	}

	var nilFlag *featureflags.Flag
	if !nilFlag.BoolValue(true) {
		t.Error("expected default value for nil flag")
	}
}

func TestInMemoryRepository_GetFlag_NotFound(t *testing.T) {
	repo := featureflags.NewInMemoryRepositoryWithFlags(nil)

	_, err := repo.GetFlag(context.Background(), "nonexistent")
	if !errors.Is(err, featureflags.ErrFlagNotFound) {
		t.Errorf("expected ErrFlagNotFound, got %v", err)
	}
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := featureflags.NewInMemoryRepository()
	ctx := context.Background()

	flag, err := repo.GetFlag(ctx, featureflags.FlagDisableGeocode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flag.Value = true

	again, _ := repo.GetFlag(ctx, featureflags.FlagDisableGeocode)
	if again.BoolValue(false) {
		t.Error("expected stored flag to be unaffected by caller mutation")
	}
}
