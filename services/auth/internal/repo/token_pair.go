package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/shop_auth/pkg/autherr"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/models"
)

// SaveTokenPair writes pair as the user's only pair, replacing any previous
// one in a single upsert on user_id.
func (r *GormRepo) SaveTokenPair(ctx context.Context, pair *models.TokenPair) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "refresh_expires_at", "updated_at"}),
	}).Create(pair).Error
}

func (r *GormRepo) FindTokenPair(ctx context.Context, userID uuid.UUID) (*models.TokenPair, error) {
	var pair models.TokenPair
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&pair).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrSessionNotFound
		}
		return nil, err
	}
	return &pair, nil
}

// ReplaceAccessToken overwrites the access member of the user's pair. The row
// is locked for the read-modify-write, and a pair whose refresh token differs
// from refreshToken counts as not found.
func (r *GormRepo) ReplaceAccessToken(ctx context.Context, userID uuid.UUID, refreshToken, accessToken string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pair models.TokenPair
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&pair).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return autherr.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		if pair.RefreshToken != refreshToken {
			return fmt.Errorf("%w: refresh token superseded", autherr.ErrSessionNotFound)
		}
		return tx.Model(&pair).Update("access_token", accessToken).Error
	})
}

// DeleteTokenPair is a no-op when the user has no pair.
func (r *GormRepo) DeleteTokenPair(ctx context.Context, userID uuid.UUID) error {
	return r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.TokenPair{}).Error
}

func (r *GormRepo) DeleteExpiredTokenPairs(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Where("refresh_expires_at <= ?", now).Delete(&models.TokenPair{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired token pairs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
