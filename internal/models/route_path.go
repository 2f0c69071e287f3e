package models

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// ErrNotLineString is returned when a route path is some other geometry.
var ErrNotLineString = errors.New("path must be a GeoJSON LineString with at least two positions")

// EncodePath parses a GeoJSON LineString into little-endian WKB. Empty or
// null input yields nil.
func EncodePath(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var g geom.T
	if err := gjson.Unmarshal(trimmed, &g); err != nil {
		return nil, fmt.Errorf("invalid GeoJSON: %w", err)
	}
	ls, ok := g.(*geom.LineString)
	if !ok || ls.NumCoords() < 2 {
		return nil, ErrNotLineString
	}
	for i := 0; i < ls.NumCoords(); i++ {
		c := ls.Coord(i)
		if !NewGeoPoint(c.Y(), c.X()).Valid() {
			return nil, fmt.Errorf("path position %d is out of range", i)
		}
	}
	return wkb.Marshal(ls, binary.LittleEndian)
}

// DecodePath converts stored WKB back into GeoJSON.
func DecodePath(b []byte) (json.RawMessage, error) {
	if len(b) == 0 {
		return nil, nil
	}
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("decode route path: %w", err)
	}
	return gjson.Marshal(g)
}
