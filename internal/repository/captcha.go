package repository

import (
	"context"
	"errors"
	"time"

	"commentboard/internal/models"

	"gorm.io/gorm"
)

// CaptchaRepository persists captcha challenges.
type CaptchaRepository interface {
	Create(ctx context.Context, captcha *models.Captcha) error
	GetByID(ctx context.Context, id uint) (*models.Captcha, error)
	// MarkUsed consumes the challenge if it is still usable at now and
	// reports whether this call consumed it.
	MarkUsed(ctx context.Context, id uint, now time.Time) (bool, error)
	DeleteExpiredOrUsed(ctx context.Context, now time.Time) (int64, error)
}

type captchaRepository struct {
	db *gorm.DB
}

// NewCaptchaRepository returns a gorm-backed CaptchaRepository.
func NewCaptchaRepository(db *gorm.DB) CaptchaRepository {
	return &captchaRepository{db: db}
}

func (r *captchaRepository) Create(ctx context.Context, captcha *models.Captcha) error {
	if err := r.db.WithContext(ctx).Create(captcha).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *captchaRepository) GetByID(ctx context.Context, id uint) (*models.Captcha, error) {
	var captcha models.Captcha
	if err := r.db.WithContext(ctx).First(&captcha, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Captcha", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &captcha, nil
}

func (r *captchaRepository) MarkUsed(ctx context.Context, id uint, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Captcha{}).
		Where("id = ? AND is_used = ? AND expires_at > ?", id, false, now).
		Update("is_used", true)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *captchaRepository) DeleteExpiredOrUsed(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ? OR is_used = ?", now, true).
		Delete(&models.Captcha{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
