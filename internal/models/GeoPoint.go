package models

import (
	"fmt"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
)

// GeoPoint is a WGS84 coordinate. On the wire it is a GeoJSON Point
// ({"type":"Point","coordinates":[lon,lat]}); in the database it is two float columns.
type GeoPoint struct {
	Latitude  float64 `gorm:"column:latitude;type:double precision;not null" json:"-"`
	Longitude float64 `gorm:"column:longitude;type:double precision;not null" json:"-"`
}

// NewGeoPoint builds a point from latitude and longitude.
func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{Latitude: lat, Longitude: lon}
}

// Coordinates returns the GeoJSON ordering [lon, lat].
func (p GeoPoint) Coordinates() [2]float64 {
	return [2]float64{p.Longitude, p.Latitude}
}

func (p GeoPoint) MarshalJSON() ([]byte, error) {
	pt := geom.NewPointFlat(geom.XY, []float64{p.Longitude, p.Latitude})
	return gjson.Marshal(pt)
}

func (p *GeoPoint) UnmarshalJSON(data []byte) error {
	var g geom.T
	if err := gjson.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("invalid GeoJSON point: %w", err)
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return fmt.Errorf("expected GeoJSON Point, got %T", g)
	}
	p.Longitude = pt.X()
	p.Latitude = pt.Y()
	return nil
}

// Valid reports whether the coordinate lies inside WGS84 bounds.
func (p GeoPoint) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}
