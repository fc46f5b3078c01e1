package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrAuditRecordImmutable is returned when an audit record update or delete is attempted.
var ErrAuditRecordImmutable = errors.New("audit records are append-only")

// AuditRecord is one append-only ledger row describing a governed action.
type AuditRecord struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    *uint             `gorm:"index" json:"actor_id"`
	ActorRole  *string           `gorm:"size:64" json:"actor_role"`
	Action     string            `gorm:"size:64;index;not null" json:"action"`
	TargetType *string           `gorm:"size:64;index" json:"target_type"`
	TargetName *string           `gorm:"size:255" json:"target_name"`
	Field      string            `gorm:"size:64;not null" json:"field"`
	OldValue   *string           `gorm:"type:text" json:"old_value"`
	NewValue   *string           `gorm:"type:text" json:"new_value"`
	Meta       datatypes.JSONMap `gorm:"type:json" json:"meta"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}

// BeforeUpdate blocks mutation of stored records.
func (AuditRecord) BeforeUpdate(*gorm.DB) error {
	return ErrAuditRecordImmutable
}

// BeforeDelete blocks removal of stored records.
func (AuditRecord) BeforeDelete(*gorm.DB) error {
	return ErrAuditRecordImmutable
}
