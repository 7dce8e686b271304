// Package geo provides the geographic primitives shared by the client core.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidLocation indicates a coordinate that is not a finite, in-range lat/lng pair.
var ErrInvalidLocation = errors.New("invalid location")

// DefaultLocation is used whenever the device position cannot be acquired (New Delhi).
var DefaultLocation = Location{Lat: 28.6139, Lng: 77.2090}

const earthRadiusKm = 6371.0

// Location is a WGS84 coordinate in degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that both components are finite and within range.
func (l Location) Validate() error {
	if math.IsNaN(l.Lat) || math.IsInf(l.Lat, 0) || math.IsNaN(l.Lng) || math.IsInf(l.Lng, 0) {
		return fmt.Errorf("%w: non-finite coordinate", ErrInvalidLocation)
	}
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidLocation, l.Lat)
	}
	if l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidLocation, l.Lng)
	}
	return nil
}

// Ptr returns a pointer to a copy of l.
func (l Location) Ptr() *Location {
	return &l
}

// DistanceKm returns the great-circle distance between a and b using the haversine formula.
func DistanceKm(a, b Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
