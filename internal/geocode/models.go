// Package geocode turns free-text place queries into coordinate suggestions.
package geocode

import (
	"context"
	"errors"
	"fmt"

	"github.com/swiftroute/swiftroute/internal/geo"
)

// Predefined errors for geocoding.
var (
	// ErrSuperseded is returned when a newer query was issued before this one resolved.
	ErrSuperseded = errors.New("query superseded by a newer one")

	// ErrProviderUnavailable indicates the geocoding service could not be reached.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")

	// ErrInvalidResponse indicates the provider answered with something unusable.
	ErrInvalidResponse = errors.New("invalid geocoding response")
)

// Suggestion is one candidate place for a query.
type Suggestion struct {
	// Label is the leading part of the full address, shown as the primary line.
	Label       string       `json:"label"`
	FullAddress string       `json:"full_address"`
	Location    geo.Location `json:"location"`
}

// Provider looks up places.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Suggestion, error)
}

// Error is a provider failure with context.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}
