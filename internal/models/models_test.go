package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoPointJSON(t *testing.T) {
	p := NewGeoPoint(7.0907, 79.9935)
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Point","coordinates":[79.9935,7.0907]}`, string(b))

	var back GeoPoint
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, p, back)

	assert.Error(t, json.Unmarshal([]byte(`{"type":"LineString","coordinates":[[0,0],[1,1]]}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`[79.9, 7.0]`), &back))
}

func TestGeoPointValid(t *testing.T) {
	assert.True(t, NewGeoPoint(-90, 180).Valid())
	assert.False(t, NewGeoPoint(90.01, 0).Valid())
	assert.False(t, NewGeoPoint(0, -180.01).Valid())
}

func TestRoutePath(t *testing.T) {
	line := json.RawMessage(`{"type":"LineString","coordinates":[[79.8612,6.9271],[80.6337,7.2906]]}`)

	var r Route
	require.NoError(t, r.SetPath(line))
	require.NotEmpty(t, r.Path)

	decoded, err := DecodePath(r.Path)
	require.NoError(t, err)
	assert.JSONEq(t, string(line), string(decoded))

	loaded := Route{Path: r.Path}
	require.NoError(t, loaded.AfterFind(nil))
	assert.JSONEq(t, string(line), string(loaded.PathGeoJSON))

	require.NoError(t, r.SetPath(json.RawMessage(`null`)))
	assert.Nil(t, r.Path)
	assert.Nil(t, r.PathGeoJSON)
}

func TestEncodePathRejects(t *testing.T) {
	testCases := map[string]string{
		"Point":           `{"type":"Point","coordinates":[79.8,6.9]}`,
		"Single position": `{"type":"LineString","coordinates":[[79.8,6.9]]}`,
		"Out of range":    `{"type":"LineString","coordinates":[[79.8,6.9],[200,7.2]]}`,
		"Not JSON":        `LINESTRING(0 0, 1 1)`,
	}
	for name, raw := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := EncodePath(json.RawMessage(raw))
			assert.Error(t, err)
		})
	}

	b, err := EncodePath(nil)
	assert.NoError(t, err)
	assert.Nil(t, b)
}

func TestBusCurrentLocation(t *testing.T) {
	var b Bus
	at := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	b.SetCurrentLocation(NewGeoPoint(7.0907, 79.9935), at)

	require.NotNil(t, b.CurrentLocation)
	assert.Equal(t, [2]float64{79.9935, 7.0907}, b.CurrentLocation.Coordinates())
	assert.Equal(t, at, *b.LastUpdated)

	reloaded := Bus{CurrentLatitude: b.CurrentLatitude, CurrentLongitude: b.CurrentLongitude}
	require.NoError(t, reloaded.AfterFind(nil))
	assert.Equal(t, b.CurrentLocation, reloaded.CurrentLocation)
}

func TestRoleAndStatusValidity(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleOperator, RoleDriver, RoleUser} {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("bus_operator").Valid())
	assert.True(t, BusStatusMaintenance.Valid())
	assert.False(t, BusStatus("retired").Valid())
}
