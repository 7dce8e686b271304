// Package nominatim provides a geocoding client for the OpenStreetMap Nominatim search API.
package nominatim

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/geo"
	"github.com/swiftroute/swiftroute/internal/geocode"
	"github.com/swiftroute/swiftroute/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "nominatim"

	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 5 * time.Second

	// DefaultUserAgent identifies the client, as the Nominatim usage policy requires.
	DefaultUserAgent = "swiftroute-client/1.0"
)

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to the public instance).
	BaseURL string

	// Timeout is the request timeout (optional, defaults to 5s).
	Timeout time.Duration

	// UserAgent sent with every request (optional).
	UserAgent string

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Nominatim search client.
type Client struct {
	baseURL string
	http    *resilience.Client
	logger  zerolog.Logger
}

var _ geocode.Provider = (*Client)(nil)

// NewClient creates a new Nominatim client. Calls are single-shot: a failed lookup is
// replaced by the user's next keystroke rather than retried.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	clientCfg := resilience.DefaultClientConfig(ProviderName)
	clientCfg.Timeout = timeout
	clientCfg.UserAgent = userAgent
	clientCfg.Registry = cfg.Registry
	clientCfg.DisableRetry = true
	clientCfg.CircuitBreaker.OnStateChange = resilience.LogStateChange(cfg.Logger)

	return &Client{
		baseURL: baseURL,
		http:    resilience.NewClient(clientCfg),
		logger:  cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// place is the subset of a Nominatim result the client consumes.
type place struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search looks up query and returns at most limit suggestions.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]geocode.Suggestion, error) {
	if limit <= 0 {
		limit = geocode.DefaultLimit
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(limit))

	var places []place
	if err := c.http.GetJSON(ctx, c.baseURL+"/search?"+params.Encode(), &places); err != nil {
		return nil, c.wrapError(err)
	}

	suggestions := make([]geocode.Suggestion, 0, len(places))
	for _, p := range places {
		s, ok := toSuggestion(p)
		if !ok {
			c.logger.Debug().Str("display_name", p.DisplayName).Msg("skipping place with unusable coordinates")
			continue
		}
		suggestions = append(suggestions, s)
		if len(suggestions) == limit {
			break
		}
	}
	return suggestions, nil
}

func toSuggestion(p place) (geocode.Suggestion, bool) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return geocode.Suggestion{}, false
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return geocode.Suggestion{}, false
	}
	loc := geo.Location{Lat: lat, Lng: lng}
	if loc.Validate() != nil {
		return geocode.Suggestion{}, false
	}

	return geocode.Suggestion{
		Label:       Label(p.DisplayName),
		FullAddress: p.DisplayName,
		Location:    loc,
	}, true
}

// Label returns the first comma-separated segment of a display name.
func Label(displayName string) string {
	head, _, _ := strings.Cut(displayName, ",")
	return strings.TrimSpace(head)
}

func (c *Client) wrapError(err error) error {
	var statusErr *resilience.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.Retryable():
		return &geocode.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMITED",
			Message:  "search temporarily unavailable",
			Err:      geocode.ErrProviderUnavailable,
		}
	case errors.As(err, &statusErr):
		return &geocode.Error{
			Provider: ProviderName,
			Code:     "UPSTREAM_ERROR",
			Message:  "search rejected: " + statusErr.Error(),
			Err:      geocode.ErrInvalidResponse,
		}
	case errors.Is(err, resilience.ErrCircuitOpen):
		return &geocode.Error{
			Provider: ProviderName,
			Code:     "CIRCUIT_OPEN",
			Message:  "search suspended after repeated failures",
			Err:      geocode.ErrProviderUnavailable,
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, resilience.ErrDecode):
		return &geocode.Error{
			Provider: ProviderName,
			Code:     "INVALID_RESPONSE",
			Message:  "unparseable search response",
			Err:      geocode.ErrInvalidResponse,
		}
	default:
		return &geocode.Error{
			Provider: ProviderName,
			Code:     "UPSTREAM_ERROR",
			Message:  "search request failed",
			Err:      errors.Join(geocode.ErrProviderUnavailable, err),
		}
	}
}
