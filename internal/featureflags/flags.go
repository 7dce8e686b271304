// Package featureflags switches client features on and off at runtime.
package featureflags

import (
	"errors"
	"time"
)

// ErrFeatureDisabled is returned by an operation whose feature is switched off.
var ErrFeatureDisabled = errors.New("feature disabled")

// DisabledError names the disable flag that refused an operation.
type DisabledError struct {
	Key string
}

func (e *DisabledError) Error() string {
	return "feature disabled by " + e.Key
}

func (e *DisabledError) Unwrap() error {
	return ErrFeatureDisabled
}

// Well-known feature flag keys.
const (
	// FlagDisableTrafficToggle stops the client from asking the server to flip grid edges.
	FlagDisableTrafficToggle = "disable_traffic_toggle"

	// FlagDisableSafetyMode hides the safety option and forces it off on ride requests.
	FlagDisableSafetyMode = "disable_safety_mode"

	// FlagDisableGeocode turns off place search for pickup and drop.
	FlagDisableGeocode = "disable_geocode"
)

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// FlagList represents a list of feature flags.
type FlagList struct {
	Items []Flag `json:"items"`
}

// FlagUpdate represents a single flag update request.
type FlagUpdate struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// BoolValue returns the flag value as a boolean.
// Returns the default value if the flag is nil or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON unmarshals numbers as float64
		return v != 0
	case string:
		switch v {
		case "true", "1", "on":
			return true
		case "false", "0", "off":
			return false
		}
	}
	return defaultValue
}

// DefaultFlags returns every known flag switched off.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	flags := make(map[string]*Flag, len(Keys()))
	for _, key := range Keys() {
		flags[key] = &Flag{Key: key, Value: false, UpdatedAt: now}
	}
	return flags
}

// Keys lists the known flag keys.
func Keys() []string {
	return []string{FlagDisableTrafficToggle, FlagDisableSafetyMode, FlagDisableGeocode}
}

// IsKnown reports whether key is a known flag.
func IsKnown(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// Seed returns the default flags with the given keys set to true. Unknown keys are reported
// back so the caller can log them.
func Seed(enabled []string) (flags map[string]*Flag, unknown []string) {
	flags = DefaultFlags()
	for _, key := range enabled {
		flag, ok := flags[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		flag.Value = true
	}
	return flags, unknown
}
