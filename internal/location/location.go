// Package location resolves the device's position once at startup.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/geo"
)

// DefaultTimeout bounds a single location request.
const DefaultTimeout = 5 * time.Second

// ErrUnavailable is returned by providers that cannot produce a fix.
var ErrUnavailable = errors.New("location unavailable")

// Provider produces a single position fix.
type Provider interface {
	Locate(ctx context.Context) (geo.Location, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (geo.Location, error)

// Locate calls f.
func (f ProviderFunc) Locate(ctx context.Context) (geo.Location, error) {
	return f(ctx)
}

// Static always returns the same coordinate.
type Static struct {
	Location geo.Location
}

// Locate returns the configured coordinate.
func (s Static) Locate(context.Context) (geo.Location, error) {
	return s.Location, nil
}

// Result is the outcome of Acquire.
type Result struct {
	Location geo.Location
	Fallback bool
	Err      error
}

// Acquire asks provider for a fix once. Any failure, timeout or out-of-range coordinate yields
// geo.DefaultLocation with Fallback set. A nil provider counts as a failure.
func Acquire(ctx context.Context, provider Provider, timeout time.Duration, logger zerolog.Logger) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	loc, err := locate(ctx, provider, timeout)
	if err != nil {
		logger.Warn().
			Err(err).
			Float64("lat", geo.DefaultLocation.Lat).
			Float64("lng", geo.DefaultLocation.Lng).
			Msg("location request failed, using default location")
		return Result{Location: geo.DefaultLocation, Fallback: true, Err: err}
	}

	logger.Info().Float64("lat", loc.Lat).Float64("lng", loc.Lng).Msg("location acquired")
	return Result{Location: loc}
}

func locate(ctx context.Context, provider Provider, timeout time.Duration) (geo.Location, error) {
	if provider == nil {
		return geo.Location{}, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type fix struct {
		loc geo.Location
		err error
	}
	ch := make(chan fix, 1)
	go func() {
		loc, err := provider.Locate(ctx)
		ch <- fix{loc, err}
	}()

	select {
	case <-ctx.Done():
		return geo.Location{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case f := <-ch:
		if f.err != nil {
			if errors.Is(f.err, ErrUnavailable) {
				return geo.Location{}, f.err
			}
			return geo.Location{}, fmt.Errorf("%w: %v", ErrUnavailable, f.err)
		}
		if err := f.loc.Validate(); err != nil {
			return geo.Location{}, err
		}
		return f.loc, nil
	}
}
