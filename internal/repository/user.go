// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"

	"agora/internal/cache"
	"agora/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	SetStaff(ctx context.Context, id uint, staff bool) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID is served from the cache when possible. Cached users carry no
// password hash, so credential checks go through GetByUsername.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	load := func() error {
		err := readDB(r.db).WithContext(ctx).First(&user, id).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return models.NewNotFoundError("User", id)
		case err != nil:
			return models.NewInternalError(err)
		}
		return nil
	}
	if err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, load); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername reads from the primary and returns nil, nil for an unknown
// username.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).Limit(1).Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// Create inserts user. A taken username is a validation error.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	switch {
	case isUniqueConstraintError(err):
		return models.NewValidationError("Username already exists")
	case err != nil:
		return models.NewInternalError(err)
	}
	return nil
}

// SetStaff grants or revokes staff rights and drops the cached copy.
func (r *userRepository) SetStaff(ctx context.Context, id uint, staff bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_staff", staff)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}
