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

func (r *GormRepo) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrIdentityNotFound
		}
		return nil, err
	}
	return &user, nil
}

// RegisterUser inserts u. A verified user with the same username makes it
// fail with ErrAlreadyRegistered; an unverified one is replaced together with
// any token pair it had. Losing an insert race to a concurrent registration
// of the same username is also ErrAlreadyRegistered.
func (r *GormRepo) RegisterUser(ctx context.Context, u *models.User) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("username = ?", u.Username).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case existing.Verified:
			return autherr.ErrAlreadyRegistered
		default:
			if err := tx.Where("user_id = ?", existing.ID).Delete(&models.TokenPair{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		}

		res := tx.Where("username = ?", u.Username).FirstOrCreate(u)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return autherr.ErrAlreadyRegistered
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %w", autherr.ErrAlreadyRegistered, err)
	}
	return err
}

func (r *GormRepo) SetVerificationCode(ctx context.Context, userID uuid.UUID, code string, expiresAt time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND verified = ?", userID, false).
		Updates(map[string]any{
			"verification_code":       code,
			"verification_expires_at": expiresAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return autherr.ErrAlreadyVerified
	}
	return nil
}

// MarkVerified flips the user to verified and clears the code, only if it is
// still unverified.
func (r *GormRepo) MarkVerified(ctx context.Context, userID uuid.UUID) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND verified = ?", userID, false).
		Updates(map[string]any{
			"verified":                true,
			"verification_code":       "",
			"verification_expires_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return autherr.ErrAlreadyVerified
	}
	return nil
}

func (r *GormRepo) SetRole(ctx context.Context, username, role string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return autherr.ErrIdentityNotFound
	}
	return nil
}

func (r *GormRepo) ListUsers(ctx context.Context, offset, limit int) ([]models.User, int64, error) {
	var (
		users []models.User
		total int64
	)
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := r.DB.WithContext(ctx).Order("created_at ASC, username ASC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// DeleteStaleUnverified removes unverified users whose code expired before
// cutoff.
func (r *GormRepo) DeleteStaleUnverified(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("verified = ? AND verification_expires_at < ?", false, cutoff).
		Delete(&models.User{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete stale unverified users: %w", res.Error)
	}
	return res.RowsAffected, nil
}
