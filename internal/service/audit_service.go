package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/relawan-api/internal/dto"
	"github.com/noah-isme/relawan-api/internal/models"
	"github.com/noah-isme/relawan-api/internal/observability"
	"github.com/noah-isme/relawan-api/internal/rbac"
	"github.com/noah-isme/relawan-api/internal/repository"
)

// FieldPlaceholder is stored when neither a field nor a target type is known.
const FieldPlaceholder = "-"

// EventFields describes the optional details of an audited action.
// OldValue and NewValue accept strings as-is; other values are stored as JSON.
type EventFields struct {
	TargetType string
	TargetName string
	Field      string
	OldValue   interface{}
	NewValue   interface{}
	Meta       map[string]interface{}
}

// EventRecorder writes one audit record per governed action.
type EventRecorder interface {
	Record(ctx context.Context, actor *rbac.Principal, action string, fields EventFields) (dto.AuditRecordResponse, error)
}

// AuditService exposes the recorder plus read access to the ledger.
type AuditService interface {
	EventRecorder
	List(ctx context.Context, req dto.AuditRecordListRequest) (dto.AuditRecordListResponse, error)
	WithTx(tx *gorm.DB) AuditService
}

type auditService struct {
	repo   repository.AuditRecordRepository
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewAuditService constructs the audit service.
func NewAuditService(repo repository.AuditRecordRepository, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.With().Str("component", "audit_service").Logger(),
		tracer: observability.Tracer("service/audit"),
	}
}

func (s *auditService) WithTx(tx *gorm.DB) AuditService {
	clone := *s
	clone.repo = s.repo.WithTx(tx)
	return &clone
}

// Record persists exactly one audit record. A nil actor records a system action.
func (s *auditService) Record(ctx context.Context, actor *rbac.Principal, action string, fields EventFields) (dto.AuditRecordResponse, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	if action == "" {
		return dto.AuditRecordResponse{}, fmt.Errorf("audit action is required")
	}

	spanCtx, span := s.tracer.Start(ctx, "audit.record", trace.WithAttributes(attribute.String("audit.action", action)))
	defer span.End()

	record := models.AuditRecord{
		Action:     action,
		TargetType: optionalString(fields.TargetType),
		TargetName: optionalString(fields.TargetName),
		Field:      resolveField(fields),
		OldValue:   stringifyValue(fields.OldValue),
		NewValue:   stringifyValue(fields.NewValue),
		Meta:       maskMeta(fields.Meta),
	}

	if actor != nil {
		actorID := actor.UserID
		record.ActorID = &actorID
		if role, ok := rbac.ResolveRole(actor); ok {
			record.ActorRole = &role
		}
	}

	if err := s.repo.Create(spanCtx, &record); err != nil {
		span.RecordError(err)
		observability.AuditRecords().WithLabelValues(action, "error").Inc()
		s.logger.Error().Err(err).Str("action", action).Msg("failed to persist audit record")
		return dto.AuditRecordResponse{}, fmt.Errorf("%w: audit record: %v", ErrPersistence, err)
	}

	observability.AuditRecords().WithLabelValues(action, "ok").Inc()
	return dto.NewAuditRecordResponse(record), nil
}

func (s *auditService) List(ctx context.Context, req dto.AuditRecordListRequest) (dto.AuditRecordListResponse, error) {
	filter := repository.AuditRecordFilter{
		Page:       req.Page,
		PageSize:   req.PageSize,
		Action:     strings.ToLower(strings.TrimSpace(req.Action)),
		TargetType: strings.TrimSpace(req.TargetType),
	}
	if req.ActorID > 0 {
		filter.ActorID = &req.ActorID
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AuditRecordListResponse{}, err
	}

	items := make([]dto.AuditRecordResponse, 0, len(records))
	for _, record := range records {
		items = append(items, dto.NewAuditRecordResponse(record))
	}

	return dto.AuditRecordListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func resolveField(fields EventFields) string {
	if field := strings.TrimSpace(fields.Field); field != "" {
		return field
	}
	if target := strings.TrimSpace(fields.TargetType); target != "" {
		return target
	}
	return FieldPlaceholder
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func stringifyValue(value interface{}) *string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return &v
	case *string:
		return v
	case fmt.Stringer:
		str := v.String()
		return &str
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			str := fmt.Sprintf("%v", v)
			return &str
		}
		str := string(raw)
		return &str
	}
}

func maskMeta(meta map[string]interface{}) datatypes.JSONMap {
	if meta == nil {
		return datatypes.JSONMap{}
	}

	masked := datatypes.JSONMap{}
	for key, value := range meta {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") || strings.Contains(lower, "password") {
			masked[key] = "***"
			continue
		}
		masked[key] = value
	}
	return masked
}
