package repository

import (
	"context"

	"gorm.io/gorm"

	"bus_tracker/internal/models"
)

type OperatorRepo struct {
	db *gorm.DB
}

func NewOperatorRepo(db *gorm.DB) *OperatorRepo {
	return &OperatorRepo{db: db}
}

func (r *OperatorRepo) Create(ctx context.Context, op *models.Operator) error {
	return translateError(r.db.WithContext(ctx).Create(op).Error, "operator")
}

func (r *OperatorRepo) FindByID(ctx context.Context, id uint) (*models.Operator, error) {
	var op models.Operator
	if err := r.db.WithContext(ctx).First(&op, id).Error; err != nil {
		return nil, translateError(err, "operator")
	}
	return &op, nil
}

func (r *OperatorRepo) Update(ctx context.Context, op *models.Operator, deactivate bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// total_buses is owned by bus writes; never overwrite it from here.
		if err := tx.Omit("TotalBuses").Save(op).Error; err != nil {
			return translateError(err, "operator")
		}
		if !deactivate {
			return nil
		}
		err := tx.Model(&models.Bus{}).
			Where("operator_id = ?", op.ID).
			Update("status", models.BusStatusInactive).Error
		if err != nil {
			return translateError(err, "buses")
		}
		err = tx.Model(&models.User{}).
			Where("operator_id = ?", op.ID).
			Update("is_active", false).Error
		return translateError(err, "users")
	})
}

func (r *OperatorRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Operator{}, id)
	if res.Error != nil {
		return translateError(res.Error, "operator")
	}
	if res.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "operator")
	}
	return nil
}

func (r *OperatorRepo) List(ctx context.Context, filter OperatorFilter) ([]models.Operator, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Operator{})
	if filter.Search != "" {
		like := containsPattern(filter.Search)
		q = q.Where(`name ILIKE ? ESCAPE '\' OR registration_number ILIKE ? ESCAPE '\'`, like, like)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "operators")
	}
	if pastEnd(filter.Page.Offset(), total) {
		return []models.Operator{}, total, nil
	}
	var ops []models.Operator
	err := q.Order("name ASC").
		Offset(filter.Page.Offset()).Limit(filter.Page.Size).
		Find(&ops).Error
	if err != nil {
		return nil, 0, translateError(err, "operators")
	}
	return ops, total, nil
}
