package dto

import (
	"time"

	"github.com/noah-isme/relawan-api/internal/models"
)

// AuditRecordListRequest defines filters for retrieving audit records.
type AuditRecordListRequest struct {
	Page       int
	PageSize   int
	ActorID    uint
	Action     string
	TargetType string
}

// AuditRecordResponse serializes an audit record.
type AuditRecordResponse struct {
	ID         uint                   `json:"id"`
	ActorID    *uint                  `json:"actor_id"`
	ActorRole  *string                `json:"actor_role"`
	Action     string                 `json:"action"`
	TargetType *string                `json:"target_type"`
	TargetName *string                `json:"target_name"`
	Field      string                 `json:"field"`
	OldValue   *string                `json:"old_value"`
	NewValue   *string                `json:"new_value"`
	Meta       map[string]interface{} `json:"meta"`
	CreatedAt  time.Time              `json:"created_at"`
}

// AuditRecordListResponse wraps paginated audit records.
type AuditRecordListResponse struct {
	Items      []AuditRecordResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}

// NewAuditRecordResponse converts a model into an audit DTO.
func NewAuditRecordResponse(record models.AuditRecord) AuditRecordResponse {
	meta := map[string]interface{}{}
	for key, value := range record.Meta {
		meta[key] = value
	}
	return AuditRecordResponse{
		ID:         record.ID,
		ActorID:    record.ActorID,
		ActorRole:  record.ActorRole,
		Action:     record.Action,
		TargetType: record.TargetType,
		TargetName: record.TargetName,
		Field:      record.Field,
		OldValue:   record.OldValue,
		NewValue:   record.NewValue,
		Meta:       meta,
		CreatedAt:  record.CreatedAt,
	}
}
