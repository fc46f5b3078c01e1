package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/relawan-api/internal/models"
	"github.com/noah-isme/relawan-api/internal/rbac"
)

// UserRepository provides read access to user accounts.
type UserRepository interface {
	FindByID(ctx context.Context, id uint) (models.User, error)
	ListByRoles(ctx context.Context, roles rbac.RoleSet) ([]models.User, error)
	WithTx(tx *gorm.DB) UserRepository
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs the user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{db: tx}
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Role").First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

// ListByRoles matches users either by role_id or by the denormalized role_name column.
func (r *userRepository) ListByRoles(ctx context.Context, roles rbac.RoleSet) ([]models.User, error) {
	if roles.Empty() {
		return nil, nil
	}

	ids := make([]uint, 0, len(roles))
	for _, name := range roles {
		if role, ok := rbac.Lookup(name); ok {
			ids = append(ids, role.ID)
		}
	}

	query := r.db.WithContext(ctx).Model(&models.User{})
	if len(ids) > 0 {
		query = query.Where("role_id IN ? OR role_name IN ?", ids, []string(roles))
	} else {
		query = query.Where("role_name IN ?", []string(roles))
	}

	var users []models.User
	if err := query.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
