// Package repository is the gorm-backed entity store. Multi-row writes that must
// be atomic run inside the repository so services stay free of *gorm.DB.
package repository

import (
	"context"
	"math"
	"strings"
	"time"

	"bus_tracker/internal/models"
)

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks bus_tracker/internal/repository UserRepository,TokenRepository,OperatorRepository,RouteRepository,BusRepository,LocationRepository

// Page selects one page of a listing; Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// Offset saturates at math.MaxInt so an absurd page number lands past the end
// instead of wrapping back to the first rows.
func (p Page) Offset() int {
	if p.Number < 1 || p.Size < 1 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// pastEnd reports whether offset skips every one of total rows.
func pastEnd(offset int, total int64) bool {
	return offset > 0 && int64(offset) >= total
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching term as a literal substring.
// Queries using it must declare ESCAPE '\'.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

type UserFilter struct {
	Search     string
	Role       models.Role
	OperatorID *uint
	BusID      *uint
	IsActive   *bool
	Page       Page
}

type OperatorFilter struct {
	Search   string
	IsActive *bool
	Page     Page
}

type RouteFilter struct {
	Search   string
	IsActive *bool
	Page     Page
}

type BusFilter struct {
	Search     string
	Status     models.BusStatus
	RouteID    *uint
	OperatorID *uint
	BusID      *uint
	Page       Page
}

// HistoryFilter bounds a history query; nil bounds are open.
type HistoryFilter struct {
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}

// NearbyFilter is a radius search around a point.
type NearbyFilter struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
	Status       models.BusStatus
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	// FindByLogin matches the username or, case-insensitively, the email.
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
	CountByOperator(ctx context.Context, operatorID uint) (int64, error)
}

type TokenRepository interface {
	// Store saves a refresh token and evicts the user's oldest beyond MaxRefreshTokens.
	Store(ctx context.Context, token *models.RefreshToken) error
	Revoke(ctx context.Context, userID uint, tokenID string) error
	RevokeAll(ctx context.Context, userID uint) error
	// Rotate replaces oldTokenID with next atomically; it fails when oldTokenID
	// is no longer stored.
	Rotate(ctx context.Context, userID uint, oldTokenID string, next *models.RefreshToken) error
}

type OperatorRepository interface {
	Create(ctx context.Context, op *models.Operator) error
	FindByID(ctx context.Context, id uint) (*models.Operator, error)
	// Update saves op; when deactivate is set the operator's buses become
	// inactive and its users are deactivated in the same transaction.
	Update(ctx context.Context, op *models.Operator, deactivate bool) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter OperatorFilter) ([]models.Operator, int64, error)
}

type RouteRepository interface {
	Create(ctx context.Context, route *models.Route) error
	FindByID(ctx context.Context, id uint) (*models.Route, error)
	// Update saves route; waypoints are replaced wholesale when replaceWaypoints is set.
	Update(ctx context.Context, route *models.Route, replaceWaypoints bool) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter RouteFilter) ([]models.Route, int64, error)
}

type BusRepository interface {
	// Create inserts bus and increments its operator's bus count.
	Create(ctx context.Context, bus *models.Bus) error
	FindByID(ctx context.Context, id uint) (*models.Bus, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	ExistsByNumber(ctx context.Context, number string, excludeID uint) (bool, error)
	// Update saves bus and moves the bus count when the operator changed from previousOperatorID.
	Update(ctx context.Context, bus *models.Bus, previousOperatorID *uint) error
	UpdateStatus(ctx context.Context, id uint, status models.BusStatus) error
	// Delete removes the bus, its pings and user assignments, and decrements its operator's count.
	Delete(ctx context.Context, bus *models.Bus) error
	List(ctx context.Context, filter BusFilter) ([]models.Bus, int64, error)
	CountByRoute(ctx context.Context, routeID uint) (int64, error)
	CountByOperator(ctx context.Context, operatorID uint) (int64, error)
}

type LocationRepository interface {
	// Append inserts the ping and refreshes the bus's cached position unless
	// the cache already holds a newer ping, in one transaction.
	Append(ctx context.Context, loc *models.Location) error
	Latest(ctx context.Context, busID uint) (*models.Location, error)
	History(ctx context.Context, busID uint, filter HistoryFilter) ([]models.Location, int64, error)
	Nearby(ctx context.Context, filter NearbyFilter) ([]models.BusLocationRow, error)
	LatestPerBus(ctx context.Context, limit int, activeOnly bool) ([]models.BusLocationRow, error)
	Stats(ctx context.Context, busID uint, dailySince time.Time) (*models.LocationStats, []models.DailyLocationStat, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
