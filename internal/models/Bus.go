// internal/models/bus.go
package models

import (
	"time"

	"gorm.io/gorm"
)

type BusStatus string

const (
	BusStatusActive      BusStatus = "active"
	BusStatusInactive    BusStatus = "inactive"
	BusStatusMaintenance BusStatus = "maintenance"
)

func (s BusStatus) Valid() bool {
	switch s {
	case BusStatusActive, BusStatusInactive, BusStatusMaintenance:
		return true
	}
	return false
}

// BusTypes lists the accepted bus classes.
var BusTypes = []string{"Normal", "Semi Luxury", "Luxury", "Super Luxury"}

// ValidBusType reports whether t is one of BusTypes.
func ValidBusType(t string) bool {
	for _, bt := range BusTypes {
		if bt == t {
			return true
		}
	}
	return false
}

type Bus struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	BusNumber string `gorm:"size:30;uniqueIndex;not null" json:"busNumber"`
	// Human-readable code such as BUS123456.
	BusCode  string    `gorm:"size:20;uniqueIndex;not null" json:"busId"`
	Capacity int       `gorm:"not null" json:"capacity"`
	BusType  string    `gorm:"size:20;not null" json:"busType"`
	Status   BusStatus `gorm:"size:20;not null;index" json:"status"`

	RouteID    uint      `gorm:"index;not null" json:"routeId"`
	Route      *Route    `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"route,omitempty"`
	OperatorID *uint     `gorm:"index" json:"operatorId,omitempty"`
	Operator   *Operator `gorm:"foreignKey:OperatorID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"operator,omitempty"`

	// Cache of the newest ping, overwritten on ingest.
	CurrentLatitude  *float64   `gorm:"type:double precision" json:"-"`
	CurrentLongitude *float64   `gorm:"type:double precision" json:"-"`
	LastUpdated      *time.Time `json:"lastUpdated,omitempty"`

	CurrentLocation *GeoPoint `gorm:"-" json:"currentLocation,omitempty"`
}

// AfterFind fills CurrentLocation from the cached columns.
func (b *Bus) AfterFind(tx *gorm.DB) error {
	b.syncCurrentLocation()
	return nil
}

func (b *Bus) syncCurrentLocation() {
	if b.CurrentLatitude != nil && b.CurrentLongitude != nil {
		p := NewGeoPoint(*b.CurrentLatitude, *b.CurrentLongitude)
		b.CurrentLocation = &p
		return
	}
	b.CurrentLocation = nil
}

// SetCurrentLocation overwrites the cached position.
func (b *Bus) SetCurrentLocation(p GeoPoint, at time.Time) {
	lat, lon := p.Latitude, p.Longitude
	b.CurrentLatitude = &lat
	b.CurrentLongitude = &lon
	b.LastUpdated = &at
	b.syncCurrentLocation()
}
