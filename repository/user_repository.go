package repository

import (
	"context"

	"github.com/kendall-kelly/manuorder-api/models"
	"gorm.io/gorm"
)

// UserRepository stores the local profiles of identity provider accounts
type UserRepository interface {
	FindByAuth0ID(ctx context.Context, auth0ID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User, updates map[string]interface{}) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a gorm backed user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByAuth0ID(ctx context.Context, auth0ID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if IsDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// Update applies updates and refreshes user from the database
func (r *userRepository) Update(ctx context.Context, user *models.User, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	db := r.db.WithContext(ctx)
	if err := db.Model(user).Updates(updates).Error; err != nil {
		if IsDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return db.First(user, "id = ?", user.ID).Error
}
