package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Route represents a fixed service path between an origin and a destination.
// Waypoints are kept in Sequence order.
type Route struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	RouteNumber       string  `gorm:"size:20;uniqueIndex;not null" json:"routeNumber"`
	Name              string  `gorm:"size:150" json:"name"`
	Origin            string  `gorm:"size:150;not null" json:"origin"`
	Destination       string  `gorm:"size:150;not null" json:"destination"`
	Distance          float64 `gorm:"type:double precision;not null" json:"distance"` // km
	EstimatedDuration int     `gorm:"not null" json:"estimatedDuration"`              // minutes
	IsActive          bool    `gorm:"not null" json:"isActive"`

	// Optional LINESTRING stored as WKB; the API exchanges it as GeoJSON.
	Path        []byte          `gorm:"type:bytea" json:"-"`
	PathGeoJSON json.RawMessage `gorm:"-" json:"path,omitempty"`

	Waypoints []Waypoint `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"waypoints"`
}

// AfterFind fills PathGeoJSON from the stored WKB.
func (r *Route) AfterFind(tx *gorm.DB) error {
	path, err := DecodePath(r.Path)
	if err != nil {
		return err
	}
	r.PathGeoJSON = path
	return nil
}

// SetPath stores a GeoJSON LineString; empty input clears the path.
func (r *Route) SetPath(raw json.RawMessage) error {
	b, err := EncodePath(raw)
	if err != nil {
		return err
	}
	r.Path = b
	if b == nil {
		r.PathGeoJSON = nil
	} else {
		r.PathGeoJSON = raw
	}
	return nil
}
