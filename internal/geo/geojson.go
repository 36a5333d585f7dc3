package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// PointFeature builds a GeoJSON point feature. GeoJSON orders coordinates longitude first.
func PointFeature(id string, p GeoPoint, props map[string]any) *geojson.Feature {
	return &geojson.Feature{
		ID:         id,
		Geometry:   geom.NewPointFlat(geom.XY, []float64{p.Longitude, p.Latitude}).SetSRID(4326),
		Properties: props,
	}
}

// MarshalFeatureCollection encodes features as a GeoJSON FeatureCollection.
// A nil slice encodes as an empty collection.
func MarshalFeatureCollection(features []*geojson.Feature) ([]byte, error) {
	if features == nil {
		features = []*geojson.Feature{}
	}
	fc := geojson.FeatureCollection{Features: features}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "geo: marshal feature collection")
	}
	return data, nil
}
