package geo

import (
	"math"

	"github.com/rotisserie/eris"
)

// ErrInvalidCoordinates is returned by Validate for out-of-range or non-finite coordinates.
var ErrInvalidCoordinates = eris.New("invalid coordinates")

// GeoPoint is a latitude/longitude pair in degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that the point is finite and within [-90,90] x [-180,180].
// DistanceKm does not call it; callers at input boundaries do.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) ||
		math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return eris.Wrap(ErrInvalidCoordinates, "coordinates must be finite")
	}
	if math.Abs(p.Latitude) > 90 {
		return eris.Wrapf(ErrInvalidCoordinates, "latitude %v out of range [-90,90]", p.Latitude)
	}
	if math.Abs(p.Longitude) > 180 {
		return eris.Wrapf(ErrInvalidCoordinates, "longitude %v out of range [-180,180]", p.Longitude)
	}
	return nil
}

// PointFromPtrs builds a GeoPoint from nullable coordinates. ok is false unless both are set.
func PointFromPtrs(lat, lon *float64) (p GeoPoint, ok bool) {
	if lat == nil || lon == nil {
		return GeoPoint{}, false
	}
	return GeoPoint{Latitude: *lat, Longitude: *lon}, true
}
