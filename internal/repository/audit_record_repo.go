package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/relawan-api/internal/models"
)

// AuditRecordFilter narrows audit record queries.
type AuditRecordFilter struct {
	Page       int
	PageSize   int
	ActorID    *uint
	Action     string
	TargetType string
}

// AuditRecordRepository persists the append-only audit ledger. Records are only created and listed.
type AuditRecordRepository interface {
	Create(ctx context.Context, record *models.AuditRecord) error
	List(ctx context.Context, filter AuditRecordFilter) ([]models.AuditRecord, int64, error)
	WithTx(tx *gorm.DB) AuditRecordRepository
}

type auditRecordRepository struct {
	db *gorm.DB
}

// NewAuditRecordRepository constructs the audit record repository.
func NewAuditRecordRepository(db *gorm.DB) AuditRecordRepository {
	return &auditRecordRepository{db: db}
}

func (r *auditRecordRepository) WithTx(tx *gorm.DB) AuditRecordRepository {
	return &auditRecordRepository{db: tx}
}

func (r *auditRecordRepository) Create(ctx context.Context, record *models.AuditRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *auditRecordRepository) List(ctx context.Context, filter AuditRecordFilter) ([]models.AuditRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditRecord{})

	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}

	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	if filter.TargetType != "" {
		query = query.Where("target_type = ?", filter.TargetType)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var records []models.AuditRecord
	if err := query.Order("created_at DESC, id DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
