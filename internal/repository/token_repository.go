package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/models"
)

type TokenRepo struct {
	db *gorm.DB
}

func NewTokenRepo(db *gorm.DB) *TokenRepo {
	return &TokenRepo{db: db}
}

func (r *TokenRepo) Store(ctx context.Context, token *models.RefreshToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(token).Error; err != nil {
			return translateError(err, "refresh token")
		}
		return evictOldTokens(tx, token.UserID)
	})
}

// evictOldTokens keeps only the newest MaxRefreshTokens for the user.
func evictOldTokens(tx *gorm.DB, userID uint) error {
	keep := tx.Model(&models.RefreshToken{}).
		Select("id").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(models.MaxRefreshTokens)
	return tx.Where("user_id = ? AND id NOT IN (?)", userID, keep).
		Delete(&models.RefreshToken{}).Error
}

func (r *TokenRepo) Revoke(ctx context.Context, userID uint, tokenID string) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND token_id = ?", userID, tokenID).
		Delete(&models.RefreshToken{}).Error
	return translateError(err, "refresh token")
}

func (r *TokenRepo) RevokeAll(ctx context.Context, userID uint) error {
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error
	return translateError(err, "refresh token")
}

func (r *TokenRepo) Rotate(ctx context.Context, userID uint, oldTokenID string, next *models.RefreshToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND token_id = ?", userID, oldTokenID).Delete(&models.RefreshToken{})
		if res.Error != nil {
			return translateError(res.Error, "refresh token")
		}
		// A concurrent rotation of the same token already consumed it.
		if res.RowsAffected != 1 {
			return apperrors.Authentication(apperrors.MsgInvalidOrExpiredToken)
		}
		if err := tx.Omit(clause.Associations).Create(next).Error; err != nil {
			return translateError(err, "refresh token")
		}
		return evictOldTokens(tx, userID)
	})
}
