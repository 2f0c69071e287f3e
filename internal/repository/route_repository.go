package repository

import (
	"context"

	"gorm.io/gorm"

	"bus_tracker/internal/models"
)

type RouteRepo struct {
	db *gorm.DB
}

func NewRouteRepo(db *gorm.DB) *RouteRepo {
	return &RouteRepo{db: db}
}

func orderedWaypoints(db *gorm.DB) *gorm.DB {
	return db.Order("sequence ASC")
}

func (r *RouteRepo) Create(ctx context.Context, route *models.Route) error {
	// Route and its waypoints go in one transaction
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		waypoints := route.Waypoints
		if err := tx.Omit("Waypoints").Create(route).Error; err != nil {
			return translateError(err, "route")
		}
		if len(waypoints) == 0 {
			route.Waypoints = []models.Waypoint{}
			return nil
		}
		for i := range waypoints {
			waypoints[i].ID = 0
			waypoints[i].RouteID = route.ID
		}
		if err := tx.Create(&waypoints).Error; err != nil {
			return translateError(err, "waypoint")
		}
		route.Waypoints = waypoints
		return nil
	})
}

func (r *RouteRepo) FindByID(ctx context.Context, id uint) (*models.Route, error) {
	var route models.Route
	err := r.db.WithContext(ctx).
		Preload("Waypoints", orderedWaypoints).
		First(&route, id).Error
	if err != nil {
		return nil, translateError(err, "route")
	}
	return &route, nil
}

func (r *RouteRepo) Update(ctx context.Context, route *models.Route, replaceWaypoints bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Waypoints").Save(route).Error; err != nil {
			return translateError(err, "route")
		}
		if !replaceWaypoints {
			return nil
		}
		if err := tx.Where("route_id = ?", route.ID).Delete(&models.Waypoint{}).Error; err != nil {
			return translateError(err, "waypoint")
		}
		if len(route.Waypoints) == 0 {
			return nil
		}
		for i := range route.Waypoints {
			route.Waypoints[i].ID = 0
			route.Waypoints[i].RouteID = route.ID
		}
		return translateError(tx.Create(&route.Waypoints).Error, "waypoint")
	})
}

func (r *RouteRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Route{}, id)
	if res.Error != nil {
		return translateError(res.Error, "route")
	}
	if res.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "route")
	}
	return nil
}

func (r *RouteRepo) List(ctx context.Context, filter RouteFilter) ([]models.Route, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Route{})
	if filter.Search != "" {
		like := containsPattern(filter.Search)
		q = q.Where(`route_number ILIKE ? ESCAPE '\' OR name ILIKE ? ESCAPE '\' OR origin ILIKE ? ESCAPE '\' OR destination ILIKE ? ESCAPE '\'`, like, like, like, like)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "routes")
	}
	if pastEnd(filter.Page.Offset(), total) {
		return []models.Route{}, total, nil
	}
	var routes []models.Route
	err := q.Preload("Waypoints", orderedWaypoints).
		Order("route_number ASC").
		Offset(filter.Page.Offset()).Limit(filter.Page.Size).
		Find(&routes).Error
	if err != nil {
		return nil, 0, translateError(err, "routes")
	}
	return routes, total, nil
}
