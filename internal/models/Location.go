package models

import (
	"time"
)

// Location is one GPS ping for a bus. Rows are append-only; they are removed
// only by retention cleanup or together with their bus.
type Location struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BusID     uint      `gorm:"not null;index:idx_locations_bus_ts,priority:1" json:"busId"`
	Point     GeoPoint  `gorm:"embedded" json:"location"`
	Speed     float64   `gorm:"type:double precision;not null" json:"speed"`     // km/h
	Heading   float64   `gorm:"type:double precision;not null" json:"heading"`   // degrees
	Accuracy  *float64  `gorm:"type:double precision" json:"accuracy,omitempty"` // meters
	Timestamp time.Time `gorm:"not null;index;index:idx_locations_bus_ts,priority:2,sort:desc" json:"timestamp"`
	IsActive  bool      `gorm:"not null;index" json:"isActive"`
	Geohash   string    `gorm:"size:12;index" json:"geohash"`
	CreatedAt time.Time `json:"createdAt"`

	Bus *Bus `gorm:"foreignKey:BusID;constraint:OnDelete:CASCADE;" json:"-"`
}

// BusSummary is the bus portion of a location listing row.
type BusSummary struct {
	ID        uint      `json:"id"`
	BusNumber string    `json:"busNumber"`
	BusCode   string    `json:"busId"`
	BusType   string    `json:"busType"`
	Capacity  int       `json:"capacity"`
	Status    BusStatus `json:"status"`
}

type RouteSummary struct {
	ID          uint   `json:"id"`
	RouteNumber string `json:"routeNumber"`
	Name        string `json:"name"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

type OperatorSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// BusLocation is a bus's latest ping joined with its bus, route and operator.
// Distance is set by proximity queries only (meters).
type BusLocation struct {
	Bus       BusSummary       `json:"bus"`
	Route     *RouteSummary    `json:"route,omitempty"`
	Operator  *OperatorSummary `json:"operator,omitempty"`
	Location  GeoPoint         `json:"location"`
	Speed     float64          `json:"speed"`
	Heading   float64          `json:"heading"`
	Accuracy  *float64         `json:"accuracy,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Distance  *float64         `json:"distance,omitempty"`
}

// BusLocationRow is the flat scan target for latest-per-bus queries.
type BusLocationRow struct {
	BusID        uint
	Latitude     float64
	Longitude    float64
	Speed        float64
	Heading      float64
	Accuracy     *float64
	Timestamp    time.Time
	BusNumber    string
	BusCode      string
	BusType      string
	Capacity     int
	Status       BusStatus
	RouteID      *uint
	RouteNumber  *string
	RouteName    *string
	Origin       *string
	Destination  *string
	OperatorID   *uint
	OperatorName *string
	Distance     *float64
}

// View shapes the row for the API.
func (r BusLocationRow) View() BusLocation {
	out := BusLocation{
		Bus: BusSummary{
			ID:        r.BusID,
			BusNumber: r.BusNumber,
			BusCode:   r.BusCode,
			BusType:   r.BusType,
			Capacity:  r.Capacity,
			Status:    r.Status,
		},
		Location:  NewGeoPoint(r.Latitude, r.Longitude),
		Speed:     r.Speed,
		Heading:   r.Heading,
		Accuracy:  r.Accuracy,
		Timestamp: r.Timestamp,
		Distance:  r.Distance,
	}
	if r.RouteID != nil {
		out.Route = &RouteSummary{ID: *r.RouteID}
		if r.RouteNumber != nil {
			out.Route.RouteNumber = *r.RouteNumber
		}
		if r.RouteName != nil {
			out.Route.Name = *r.RouteName
		}
		if r.Origin != nil {
			out.Route.Origin = *r.Origin
		}
		if r.Destination != nil {
			out.Route.Destination = *r.Destination
		}
	}
	if r.OperatorID != nil {
		out.Operator = &OperatorSummary{ID: *r.OperatorID}
		if r.OperatorName != nil {
			out.Operator.Name = *r.OperatorName
		}
	}
	return out
}

// LocationStats aggregates a bus's whole history.
type LocationStats struct {
	TotalRecords int64      `json:"totalRecords"`
	AvgSpeed     float64    `json:"avgSpeed"`
	MaxSpeed     float64    `json:"maxSpeed"`
	FirstRecord  *time.Time `json:"firstRecord"`
	LastRecord   *time.Time `json:"lastRecord"`
}

// DailyLocationStat is one calendar day (UTC, YYYY-MM-DD) of a bus's pings.
type DailyLocationStat struct {
	Date     string  `json:"date"`
	Count    int64   `json:"count"`
	AvgSpeed float64 `json:"avgSpeed"`
}
