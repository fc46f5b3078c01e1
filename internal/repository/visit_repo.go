package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/relawan-api/internal/models"
)

// VisitFilter narrows visit listings.
type VisitFilter struct {
	Page        int
	PageSize    int
	VolunteerID *uint
	Status      string
	Search      string
}

// VisitRepository persists visit reports.
type VisitRepository interface {
	Create(ctx context.Context, visit *models.Visit) error
	FindByID(ctx context.Context, id uint) (models.Visit, error)
	Update(ctx context.Context, visit *models.Visit) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter VisitFilter) ([]models.Visit, int64, error)
	WithTx(tx *gorm.DB) VisitRepository
}

type visitRepository struct {
	db *gorm.DB
}

// NewVisitRepository constructs the visit repository.
func NewVisitRepository(db *gorm.DB) VisitRepository {
	return &visitRepository{db: db}
}

func (r *visitRepository) WithTx(tx *gorm.DB) VisitRepository {
	return &visitRepository{db: tx}
}

func (r *visitRepository) Create(ctx context.Context, visit *models.Visit) error {
	return r.db.WithContext(ctx).Create(visit).Error
}

func (r *visitRepository) FindByID(ctx context.Context, id uint) (models.Visit, error) {
	var visit models.Visit
	if err := r.db.WithContext(ctx).Preload("Volunteer").First(&visit, id).Error; err != nil {
		return models.Visit{}, err
	}
	return visit, nil
}

func (r *visitRepository) Update(ctx context.Context, visit *models.Visit) error {
	return r.db.WithContext(ctx).Omit("Volunteer").Save(visit).Error
}

func (r *visitRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Visit{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *visitRepository) List(ctx context.Context, filter VisitFilter) ([]models.Visit, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Visit{})

	if filter.VolunteerID != nil {
		query = query.Where("volunteer_id = ?", *filter.VolunteerID)
	}

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(location) LIKE ?", like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var visits []models.Visit
	if err := query.Order("created_at DESC, id DESC").Find(&visits).Error; err != nil {
		return nil, 0, err
	}

	return visits, total, nil
}
