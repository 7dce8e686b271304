// Package config loads client configuration from the environment and an optional YAML file.
//
// Every key can be set as SWIFTROUTE_<KEY> with dots replaced by underscores, for example
// SWIFTROUTE_SERVER_URL or SWIFTROUTE_GEOCODE_DEBOUNCE. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/swiftroute/swiftroute/internal/geo"
)

const (
	// EnvPrefix prefixes every environment variable.
	EnvPrefix = "SWIFTROUTE"

	// FileName is the config file looked up in the working directory when no path is given.
	FileName = "swiftroute"
)

// Location provider modes.
const (
	LocationIP     = "ip"
	LocationStatic = "static"
	LocationNone   = "none"
)

// ErrInvalid is returned when a loaded value is unusable.
var ErrInvalid = errors.New("invalid configuration")

// Config is the client configuration.
type Config struct {
	Environment string

	Server    ServerConfig
	View      ViewConfig
	Geocode   GeocodeConfig
	Location  LocationConfig
	Telemetry TelemetryConfig

	// DisabledFeatures lists feature flag keys switched off at startup.
	DisabledFeatures []string
}

// ServerConfig describes the dispatch backend channel.
type ServerConfig struct {
	URL            string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	PongWait       time.Duration
}

// ViewConfig describes the local HTTP view surface.
type ViewConfig struct {
	Port           string
	RequestsPerMin int
}

// GeocodeConfig describes the place search provider.
type GeocodeConfig struct {
	BaseURL   string
	UserAgent string
	Limit     int
	Debounce  time.Duration
	Timeout   time.Duration
}

// LocationConfig describes how the device position is found.
type LocationConfig struct {
	Mode     string
	Endpoint string
	Timeout  time.Duration
	Static   geo.Location
}

// TelemetryConfig mirrors telemetry.Config.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.url", "ws://localhost:3000/ws")
	v.SetDefault("server.initial_backoff", "500ms")
	v.SetDefault("server.max_backoff", "30s")
	v.SetDefault("server.pong_wait", "60s")

	v.SetDefault("view.port", "8080")
	v.SetDefault("view.requests_per_min", 600)

	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "swiftroute-client/1.0")
	v.SetDefault("geocode.limit", 5)
	v.SetDefault("geocode.debounce", "300ms")
	v.SetDefault("geocode.timeout", "10s")

	v.SetDefault("location.mode", LocationIP)
	v.SetDefault("location.endpoint", "http://ip-api.com/json/?fields=status,message,lat,lon")
	v.SetDefault("location.timeout", "5s")
	v.SetDefault("location.lat", geo.DefaultLocation.Lat)
	v.SetDefault("location.lng", geo.DefaultLocation.Lng)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")

	v.SetDefault("features.disabled", []string{})
}

// Load reads configuration. An empty path looks for swiftroute.yaml in the working
// directory and carries on without it; an explicit path must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Environment: v.GetString("environment"),
		Server: ServerConfig{
			URL:            v.GetString("server.url"),
			InitialBackoff: v.GetDuration("server.initial_backoff"),
			MaxBackoff:     v.GetDuration("server.max_backoff"),
			PongWait:       v.GetDuration("server.pong_wait"),
		},
		View: ViewConfig{
			Port:           v.GetString("view.port"),
			RequestsPerMin: v.GetInt("view.requests_per_min"),
		},
		Geocode: GeocodeConfig{
			BaseURL:   v.GetString("geocode.base_url"),
			UserAgent: v.GetString("geocode.user_agent"),
			Limit:     v.GetInt("geocode.limit"),
			Debounce:  v.GetDuration("geocode.debounce"),
			Timeout:   v.GetDuration("geocode.timeout"),
		},
		Location: LocationConfig{
			Mode:     strings.ToLower(v.GetString("location.mode")),
			Endpoint: v.GetString("location.endpoint"),
			Timeout:  v.GetDuration("location.timeout"),
			Static: geo.Location{
				Lat: v.GetFloat64("location.lat"),
				Lng: v.GetFloat64("location.lng"),
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("telemetry.enabled"),
			OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
		},
		DisabledFeatures: splitList(v.GetStringSlice("features.disabled")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values the client cannot start without.
func (c Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("%w: server.url %q must be a ws:// or wss:// URL", ErrInvalid, c.Server.URL)
	}
	if c.Server.InitialBackoff <= 0 || c.Server.MaxBackoff < c.Server.InitialBackoff {
		return fmt.Errorf("%w: server backoff bounds %s..%s", ErrInvalid, c.Server.InitialBackoff, c.Server.MaxBackoff)
	}
	if c.View.Port == "" {
		return fmt.Errorf("%w: view.port is empty", ErrInvalid)
	}
	if c.Geocode.Limit <= 0 {
		return fmt.Errorf("%w: geocode.limit must be positive", ErrInvalid)
	}

	switch c.Location.Mode {
	case LocationIP, LocationNone:
	case LocationStatic:
		if err := c.Location.Static.Validate(); err != nil {
			return fmt.Errorf("%w: static location: %v", ErrInvalid, err)
		}
	default:
		return fmt.Errorf("%w: location.mode %q", ErrInvalid, c.Location.Mode)
	}
	return nil
}

// splitList flattens comma separated entries, which is how lists arrive from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
