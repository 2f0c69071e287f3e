package models

// Waypoint is a named stop along a route. EstimatedMinutes is the elapsed
// time from the route's origin.
type Waypoint struct {
	ID uint `gorm:"primaryKey" json:"-"`

	Name             string   `gorm:"size:150;not null" json:"name"`
	Point            GeoPoint `gorm:"embedded" json:"location"`
	EstimatedMinutes int      `gorm:"not null" json:"estimatedTime"`
	Sequence         int      `gorm:"not null" json:"sequence"`

	// Foreign key to route
	RouteID uint `gorm:"index;not null" json:"-"`
}
