package domain

import (
	"errors"
	"fmt"
	"math"
)

// LocationTolerance is the per-axis distance in degrees (~11 m) under which
// two coordinates are considered the same spot on the map.
const LocationTolerance = 0.0001

// Coordinate represents a WGS-84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ErrInvalidCoordinate is returned by Validate for unusable coordinates.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Validate reports whether c is a finite WGS-84 position.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return fmt.Errorf("%w: non-finite value", ErrInvalidCoordinate)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, c.Lon)
	}
	return nil
}

// String formats the coordinate as "lat,lon" with 6 decimals.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// toleranceSlack absorbs float rounding so a step of exactly
// LocationTolerance still compares as the same location.
const toleranceSlack = 1e-9

// SameLocation reports whether a and b are within LocationTolerance on both
// axes. Exceeding the tolerance on either axis makes them different.
func SameLocation(a, b Coordinate) bool {
	return math.Abs(a.Lat-b.Lat) <= LocationTolerance+toleranceSlack &&
		math.Abs(a.Lon-b.Lon) <= LocationTolerance+toleranceSlack
}
