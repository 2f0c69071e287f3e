package models

import "time"

// Role is the user's access level.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleDriver   Role = "driver"
	RoleUser     Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleDriver, RoleUser:
		return true
	}
	return false
}

// User is an account. OperatorID is only meaningful for operator and driver roles,
// AssignedBusID only for driver and user roles.
type User struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Username      string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email         string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash  string     `gorm:"not null" json:"-"`
	Role          Role       `gorm:"size:20;not null;index" json:"role"`
	OperatorID    *uint      `gorm:"index" json:"operatorId,omitempty"`
	AssignedBusID *uint      `gorm:"index" json:"assignedBusId,omitempty"`
	IsActive      bool       `gorm:"not null" json:"isActive"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	Operator *Operator `gorm:"foreignKey:OperatorID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"operator,omitempty"`
}

// RefreshToken records an issued refresh token by its jti. A user keeps at most
// MaxRefreshTokens of them.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	TokenID   string    `gorm:"size:64;uniqueIndex;not null" json:"tokenId"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;" json:"-"`
}

// MaxRefreshTokens bounds the stored refresh tokens per user.
const MaxRefreshTokens = 5
