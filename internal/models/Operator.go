// internal/models/operator.go
package models

import (
	"time"
)

// Operator represents a transport company that owns buses
// and employs operator and driver users.
type Operator struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name               string    `gorm:"size:150;not null" json:"name"`
	RegistrationNumber string    `gorm:"size:50;uniqueIndex;not null" json:"registrationNumber"`
	LicenseNumber      string    `gorm:"size:50;uniqueIndex;not null" json:"licenseNumber"`
	LicenseIssueDate   time.Time `gorm:"not null" json:"licenseIssueDate"`
	LicenseExpiryDate  time.Time `gorm:"not null" json:"licenseExpiryDate"`
	ContactEmail       string    `gorm:"size:255" json:"contactEmail"`
	ContactPhone       string    `gorm:"size:30" json:"contactPhone"`
	Address            string    `json:"address"`
	IsActive           bool      `gorm:"not null" json:"isActive"`

	// Denormalized count, maintained in the same transaction as bus writes.
	TotalBuses int `gorm:"not null" json:"totalBuses"`
}
