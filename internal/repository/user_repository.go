package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"bus_tracker/internal/models"
)

type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Omit("Operator").Create(user).Error
	return translateError(err, "user")
}

func (r *UserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translateError(err, "user")
	}
	return &user, nil
}

func (r *UserRepo) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR LOWER(email) = ?", login, strings.ToLower(login)).
		First(&user).Error
	if err != nil {
		return nil, translateError(err, "user")
	}
	return &user, nil
}

func (r *UserRepo) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Omit("Operator").Save(user).Error
	return translateError(err, "user")
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login", at).Error
	return translateError(err, "user")
}

func (r *UserRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return translateError(res.Error, "user")
		}
		if res.RowsAffected == 0 {
			return translateError(gorm.ErrRecordNotFound, "user")
		}
		return nil
	})
}

func (r *UserRepo) List(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if filter.Search != "" {
		like := containsPattern(filter.Search)
		q = q.Where(`username ILIKE ? ESCAPE '\' OR email ILIKE ? ESCAPE '\'`, like, like)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.OperatorID != nil {
		q = q.Where("operator_id = ?", *filter.OperatorID)
	}
	if filter.BusID != nil {
		q = q.Where("assigned_bus_id = ?", *filter.BusID)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "users")
	}
	if pastEnd(filter.Page.Offset(), total) {
		return []models.User{}, total, nil
	}

	var users []models.User
	err := q.Order("created_at DESC").
		Offset(filter.Page.Offset()).Limit(filter.Page.Size).
		Find(&users).Error
	if err != nil {
		return nil, 0, translateError(err, "users")
	}
	return users, total, nil
}

func (r *UserRepo) CountByOperator(ctx context.Context, operatorID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("operator_id = ?", operatorID).Count(&n).Error
	return n, translateError(err, "users")
}
