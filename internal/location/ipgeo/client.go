// Package ipgeo provides a location provider backed by an IP geolocation JSON endpoint.
package ipgeo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/geo"
	"github.com/swiftroute/swiftroute/internal/location"
	"github.com/swiftroute/swiftroute/internal/provider/resilience"
)

const (
	// ProviderName identifies this location provider.
	ProviderName = "ipgeo"

	// DefaultEndpoint returns {"status":"success","lat":..,"lon":..} for the caller's IP.
	DefaultEndpoint = "http://ip-api.com/json/?fields=status,message,lat,lon"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 5 * time.Second
)

// ClientConfig holds configuration for the IP geolocation client.
type ClientConfig struct {
	// Endpoint is the lookup URL (optional, defaults to ip-api.com).
	Endpoint string

	// Timeout is the request timeout (optional, defaults to 5s).
	Timeout time.Duration

	// UserAgent sent with the lookup.
	UserAgent string

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client resolves the device's approximate position from its public IP.
type Client struct {
	endpoint string
	http     *resilience.Client
	logger   zerolog.Logger
}

var _ location.Provider = (*Client)(nil)

// NewClient creates a new IP geolocation client.
func NewClient(cfg ClientConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	clientCfg := resilience.DefaultClientConfig(ProviderName)
	clientCfg.Timeout = timeout
	clientCfg.UserAgent = cfg.UserAgent
	clientCfg.Registry = cfg.Registry
	// The lookup happens once; a retry would only delay the fallback.
	clientCfg.DisableRetry = true
	clientCfg.CircuitBreaker.OnStateChange = resilience.LogStateChange(cfg.Logger)

	return &Client{
		endpoint: endpoint,
		http:     resilience.NewClient(clientCfg),
		logger:   cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

type lookupResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// Locate performs the lookup.
func (c *Client) Locate(ctx context.Context) (geo.Location, error) {
	var resp lookupResponse
	if err := c.http.GetJSON(ctx, c.endpoint, &resp); err != nil {
		return geo.Location{}, fmt.Errorf("%w: %v", location.ErrUnavailable, err)
	}

	if resp.Status != "" && resp.Status != "success" {
		return geo.Location{}, fmt.Errorf("%w: lookup status %q: %s", location.ErrUnavailable, resp.Status, resp.Message)
	}
	if resp.Lat == nil || resp.Lon == nil {
		return geo.Location{}, fmt.Errorf("%w: response without coordinates", location.ErrUnavailable)
	}

	loc := geo.Location{Lat: *resp.Lat, Lng: *resp.Lon}
	c.logger.Debug().Float64("lat", loc.Lat).Float64("lng", loc.Lng).Msg("ip location resolved")
	return loc, nil
}
