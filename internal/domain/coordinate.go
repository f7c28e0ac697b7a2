package domain

import (
	"errors"
	"fmt"
)

// Coordinate validation errors
var (
	ErrMissingCoordinate    = errors.New("coordinate is missing")
	ErrZeroCoordinate       = errors.New("coordinates (0,0) indicate a failed geocoding result")
	ErrOutOfRangeCoordinate = errors.New("coordinate is out of range")
)

// corruptMagnitude guards against garbage values from provider payloads
// that happen to fit in a float field
const corruptMagnitude = 1000.0

// Coordinate is an immutable latitude/longitude pair in decimal degrees
type Coordinate struct {
	latitude  float64
	longitude float64
}

// NewCoordinate creates a validated Coordinate.
// The pair (0,0) is rejected: geocoding providers use it as a
// failure sentinel, not as a real location.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	if lat == 0 && lon == 0 {
		return Coordinate{}, ErrZeroCoordinate
	}
	if abs(lat) > corruptMagnitude || abs(lon) > corruptMagnitude {
		return Coordinate{}, fmt.Errorf("%w: (%f, %f) looks corrupt", ErrOutOfRangeCoordinate, lat, lon)
	}
	if abs(lat) > 90 {
		return Coordinate{}, fmt.Errorf("%w: latitude %f outside [-90, 90]", ErrOutOfRangeCoordinate, lat)
	}
	if abs(lon) > 180 {
		return Coordinate{}, fmt.Errorf("%w: longitude %f outside [-180, 180]", ErrOutOfRangeCoordinate, lon)
	}

	return Coordinate{latitude: lat, longitude: lon}, nil
}

// CoordinateFromParts builds a Coordinate from optional components,
// as returned by geocoding lookups where either value may be absent.
func CoordinateFromParts(lat, lon *float64) (Coordinate, error) {
	if lat == nil || lon == nil {
		return Coordinate{}, ErrMissingCoordinate
	}
	return NewCoordinate(*lat, *lon)
}

// Latitude returns the latitude in decimal degrees
func (c Coordinate) Latitude() float64 { return c.latitude }

// Longitude returns the longitude in decimal degrees
func (c Coordinate) Longitude() float64 { return c.longitude }

// IsZero reports whether the coordinate is the unset zero value
func (c Coordinate) IsZero() bool {
	return c.latitude == 0 && c.longitude == 0
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%f, %f)", c.latitude, c.longitude)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
