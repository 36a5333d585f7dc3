package geo

import "math"

// kmPerDegree is the great-circle length of one degree on the Haversine sphere.
const kmPerDegree = EarthRadiusKm * math.Pi / 180

// Box is a latitude/longitude rectangle used as a coarse SQL prefilter.
// When LonBounded is false the longitude constraint must be skipped: the box
// reaches a pole or wraps the antimeridian.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	LonBounded     bool
}

// BoundingBox returns a box containing every point within radiusKm of center.
// It is a degree-arithmetic approximation widened to never exclude an in-range point;
// exact filtering happens afterwards with DistanceKm.
func BoundingBox(center GeoPoint, radiusKm float64) Box {
	dLat := radiusKm / kmPerDegree
	b := Box{
		MinLat: math.Max(center.Latitude-dLat, -90),
		MaxLat: math.Min(center.Latitude+dLat, 90),
	}
	if b.MinLat <= -90 || b.MaxLat >= 90 {
		return b
	}

	// Widest longitude span occurs at the latitude edge closest to a pole.
	edge := math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat))
	cos := math.Cos(degreesToRadians(edge))
	if cos <= 0 {
		return b
	}
	dLon := radiusKm / (kmPerDegree * cos)
	if dLon >= 180 || center.Longitude-dLon < -180 || center.Longitude+dLon > 180 {
		return b
	}
	b.MinLon = center.Longitude - dLon
	b.MaxLon = center.Longitude + dLon
	b.LonBounded = true
	return b
}

// Contains reports whether p lies inside the box.
func (b Box) Contains(p GeoPoint) bool {
	if p.Latitude < b.MinLat || p.Latitude > b.MaxLat {
		return false
	}
	if !b.LonBounded {
		return true
	}
	return p.Longitude >= b.MinLon && p.Longitude <= b.MaxLon
}
