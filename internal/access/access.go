// Package access decides whether geotagged records are visible from a reference location.
//
// Missing information always denies: without a reference location nothing is in range,
// and a record without coordinates is never in range.
package access

import (
	"fmt"
	"math"
	"strconv"

	"github.com/nitesh/civictrack/internal/geo"
)

// Reasons reported when access is denied without a distance.
const (
	ReasonLocationRequired          = "location required"
	ReasonRecordLocationUnavailable = "record location unavailable"
	ReasonDistanceUnavailable       = "distance unavailable"
)

// Locatable is a record that may carry coordinates.
type Locatable interface {
	Location() (geo.GeoPoint, bool)
}

// Decision is the outcome of CanAccess.
type Decision struct {
	Allowed    bool     `json:"allowed"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// CanAccess applies the neighborhood policy to a single record.
// ref is the caller's reference location; nil means none is known.
// The reported distance is rounded to one decimal; the comparison uses the exact distance.
func CanAccess(record Locatable, ref *geo.GeoPoint, radiusKm float64) Decision {
	if ref == nil {
		return Decision{Reason: ReasonLocationRequired}
	}
	target, ok := record.Location()
	if !ok {
		return Decision{Reason: ReasonRecordLocationUnavailable}
	}

	distance := geo.Distance(*ref, target)
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return Decision{Reason: ReasonDistanceUnavailable}
	}
	rounded := geo.RoundKm(distance)
	// Negated so a NaN radius also denies.
	if !(distance <= radiusKm) {
		return Decision{
			DistanceKm: &rounded,
			Reason:     outsideZone(rounded, radiusKm),
		}
	}
	return Decision{Allowed: true, DistanceKm: &rounded}
}

// FilterWithinRadius returns the records CanAccess allows, in input order.
// The result is empty, never nil, when ref is nil.
func FilterWithinRadius[T Locatable](records []T, ref *geo.GeoPoint, radiusKm float64) []T {
	out := make([]T, 0)
	if ref == nil {
		return out
	}
	for _, r := range records {
		if CanAccess(r, ref, radiusKm).Allowed {
			out = append(out, r)
		}
	}
	return out
}

func outsideZone(distanceKm, radiusKm float64) string {
	return fmt.Sprintf("%.1f km away, outside %s km zone",
		distanceKm, strconv.FormatFloat(radiusKm, 'f', -1, 64))
}
