// Package location persists the user's chosen reference location.
//
// Every backend keeps a single current value under StorageKey. Load never fails:
// a missing, unreadable or malformed value is reported as absent.
package location

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/nitesh/civictrack/internal/geo"
)

// StorageKey is the fixed key the location is stored under.
const StorageKey = "userLocation"

// UserLocation is a reference point acquired from GPS or typed in by the user.
type UserLocation struct {
	geo.GeoPoint
	Address  string `json:"address,omitempty"`
	IsManual bool   `json:"isManual"`
}

// Point returns a pointer to a copy of the location's coordinates.
func (l UserLocation) Point() *geo.GeoPoint {
	p := l.GeoPoint
	return &p
}

// Store saves, loads and clears the current UserLocation.
type Store interface {
	Save(ctx context.Context, loc UserLocation) error
	Load(ctx context.Context) (UserLocation, bool)
	Clear(ctx context.Context) error
}

// Provider resolves the Store for a client session.
type Provider func(session string) Store

// storedLocation mirrors UserLocation with nullable coordinates so a value
// missing either coordinate decodes as absent rather than as (0,0).
type storedLocation struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address,omitempty"`
	IsManual  bool     `json:"isManual"`
}

// Encode serializes a location to the persisted JSON form.
func Encode(loc UserLocation) ([]byte, error) {
	data, err := json.Marshal(loc)
	if err != nil {
		return nil, eris.Wrap(err, "location: encode")
	}
	return data, nil
}

// Decode parses the persisted JSON form. ok is false for anything that is not a
// JSON object carrying both coordinates.
func Decode(data []byte) (UserLocation, bool) {
	var s storedLocation
	if err := json.Unmarshal(data, &s); err != nil {
		return UserLocation{}, false
	}
	p, ok := geo.PointFromPtrs(s.Latitude, s.Longitude)
	if !ok {
		return UserLocation{}, false
	}
	return UserLocation{GeoPoint: p, Address: s.Address, IsManual: s.IsManual}, true
}
