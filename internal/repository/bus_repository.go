package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bus_tracker/internal/models"
)

type BusRepo struct {
	db *gorm.DB
}

func NewBusRepo(db *gorm.DB) *BusRepo {
	return &BusRepo{db: db}
}

func adjustBusCount(tx *gorm.DB, operatorID *uint, delta int) error {
	if operatorID == nil {
		return nil
	}
	err := tx.Model(&models.Operator{}).
		Where("id = ?", *operatorID).
		UpdateColumn("total_buses", gorm.Expr("GREATEST(total_buses + ?, 0)", delta)).Error
	return translateError(err, "operator")
}

func (r *BusRepo) Create(ctx context.Context, bus *models.Bus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(bus).Error; err != nil {
			return translateError(err, "bus")
		}
		return adjustBusCount(tx, bus.OperatorID, 1)
	})
}

func (r *BusRepo) FindByID(ctx context.Context, id uint) (*models.Bus, error) {
	var bus models.Bus
	err := r.db.WithContext(ctx).
		Preload("Route").
		Preload("Operator").
		First(&bus, id).Error
	if err != nil {
		return nil, translateError(err, "bus")
	}
	return &bus, nil
}

func (r *BusRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Bus{}).Where("bus_code = ?", code).Count(&n).Error
	if err != nil {
		return false, translateError(err, "bus")
	}
	return n > 0, nil
}

func (r *BusRepo) ExistsByNumber(ctx context.Context, number string, excludeID uint) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&models.Bus{}).Where("bus_number = ?", number)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, translateError(err, "bus")
	}
	return n > 0, nil
}

func sameOperator(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *BusRepo) Update(ctx context.Context, bus *models.Bus, previousOperatorID *uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The position cache is written only by location ingest.
		err := tx.Omit(clause.Associations, "CurrentLatitude", "CurrentLongitude", "LastUpdated").
			Save(bus).Error
		if err != nil {
			return translateError(err, "bus")
		}
		if sameOperator(previousOperatorID, bus.OperatorID) {
			return nil
		}
		if err := adjustBusCount(tx, previousOperatorID, -1); err != nil {
			return err
		}
		return adjustBusCount(tx, bus.OperatorID, 1)
	})
}

func (r *BusRepo) UpdateStatus(ctx context.Context, id uint, status models.BusStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Bus{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return translateError(res.Error, "bus")
	}
	if res.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "bus")
	}
	return nil
}

func (r *BusRepo) Delete(ctx context.Context, bus *models.Bus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bus_id = ?", bus.ID).Delete(&models.Location{}).Error; err != nil {
			return translateError(err, "locations")
		}
		err := tx.Model(&models.User{}).
			Where("assigned_bus_id = ?", bus.ID).
			Update("assigned_bus_id", nil).Error
		if err != nil {
			return translateError(err, "users")
		}
		res := tx.Delete(&models.Bus{}, bus.ID)
		if res.Error != nil {
			return translateError(res.Error, "bus")
		}
		if res.RowsAffected == 0 {
			return translateError(gorm.ErrRecordNotFound, "bus")
		}
		return adjustBusCount(tx, bus.OperatorID, -1)
	})
}

func (r *BusRepo) List(ctx context.Context, filter BusFilter) ([]models.Bus, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Bus{})
	if filter.Search != "" {
		like := containsPattern(filter.Search)
		q = q.Where(`bus_number ILIKE ? ESCAPE '\' OR bus_code ILIKE ? ESCAPE '\'`, like, like)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.RouteID != nil {
		q = q.Where("route_id = ?", *filter.RouteID)
	}
	if filter.OperatorID != nil {
		q = q.Where("operator_id = ?", *filter.OperatorID)
	}
	if filter.BusID != nil {
		q = q.Where("id = ?", *filter.BusID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "buses")
	}
	if pastEnd(filter.Page.Offset(), total) {
		return []models.Bus{}, total, nil
	}
	var buses []models.Bus
	err := q.Preload("Route").Preload("Operator").
		Order("bus_number ASC").
		Offset(filter.Page.Offset()).Limit(filter.Page.Size).
		Find(&buses).Error
	if err != nil {
		return nil, 0, translateError(err, "buses")
	}
	return buses, total, nil
}

func (r *BusRepo) CountByRoute(ctx context.Context, routeID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Bus{}).Where("route_id = ?", routeID).Count(&n).Error
	return n, translateError(err, "buses")
}

func (r *BusRepo) CountByOperator(ctx context.Context, operatorID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Bus{}).Where("operator_id = ?", operatorID).Count(&n).Error
	return n, translateError(err, "buses")
}
