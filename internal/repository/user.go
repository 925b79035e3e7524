package repository

import (
	"context"
	"errors"
	"time"

	"commentboard/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByIdentity(ctx context.Context, userName, email string) (*models.User, error)
	// GetOrCreate resolves the (UserName, Email) pair of candidate to a stored
	// user, creating it on first sight and touching LastActivity otherwise.
	GetOrCreate(ctx context.Context, candidate *models.User) (*models.User, error)
}

type userRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, now: time.Now}
}

func (r *userRepository) GetByIdentity(ctx context.Context, userName, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("user_name = ? AND email = ?", userName, email).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", userName)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetOrCreate(ctx context.Context, candidate *models.User) (*models.User, error) {
	now := r.now().UTC()

	existing, err := r.GetByIdentity(ctx, candidate.UserName, candidate.Email)
	switch {
	case err == nil:
		return r.touch(ctx, existing, now)
	case !models.HasCode(err, models.CodeNotFound):
		return nil, err
	}

	user := *candidate
	user.ID = 0
	user.CreatedAt = now
	user.LastActivity = now
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, models.NewInternalError(err)
		}
		// A concurrent first comment from the same identity won the insert.
		existing, err := r.GetByIdentity(ctx, candidate.UserName, candidate.Email)
		if err != nil {
			return nil, err
		}
		return r.touch(ctx, existing, now)
	}
	return &user, nil
}

func (r *userRepository) touch(ctx context.Context, user *models.User, now time.Time) (*models.User, error) {
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("last_activity", now).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user.LastActivity = now
	return user, nil
}
