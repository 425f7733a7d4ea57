package repository

import (
	"context"

	"github.com/marginalia-app/marginalia-api/internal/models"
	"github.com/marginalia-app/marginalia-api/internal/storage"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *storage.Postgres
}

func NewUserRepository(db *storage.Postgres) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.DB.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &user, err
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &user, err
}

// Used on subscription changes; callers should also reset the user's
// counting buckets so the new tier takes effect immediately.
func (r *UserRepository) UpdateTier(ctx context.Context, id, tier string) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("tier", tier).Error
}
