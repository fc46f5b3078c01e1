package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/noah-isme/relawan-api/internal/dto"
	"github.com/noah-isme/relawan-api/internal/models"
	"github.com/noah-isme/relawan-api/internal/notification"
	"github.com/noah-isme/relawan-api/internal/rbac"
	"github.com/noah-isme/relawan-api/internal/repository"
)

// Audit actions written by the visit workflow.
const (
	ActionVisitCreated       = "visit_created"
	ActionVisitUpdated       = "visit_updated"
	ActionVisitVerified      = "visit_verified"
	ActionVisitRejected      = "visit_rejected"
	ActionVisitNeedsRevision = "visit_needs_revision"
	ActionVisitDeleted       = "visit_deleted"

	visitTarget = "visit"
)

// VisitService runs the kunjungan workflow. Every mutation, its audit record and
// its notifications commit together.
type VisitService interface {
	Create(ctx context.Context, actor rbac.Principal, req dto.VisitCreateRequest) (dto.VisitResponse, error)
	Update(ctx context.Context, actor rbac.Principal, id uint, req dto.VisitUpdateRequest) (dto.VisitResponse, error)
	Verify(ctx context.Context, actor rbac.Principal, id uint) (dto.VisitResponse, error)
	Reject(ctx context.Context, actor rbac.Principal, id uint, req dto.VisitRejectRequest) (dto.VisitResponse, error)
	RequestRevision(ctx context.Context, actor rbac.Principal, id uint, req dto.VisitRevisionRequest) (dto.VisitResponse, error)
	Delete(ctx context.Context, actor rbac.Principal, id uint) error
	Get(ctx context.Context, actor rbac.Principal, id uint) (dto.VisitResponse, error)
	List(ctx context.Context, actor rbac.Principal, req dto.VisitListRequest) (dto.VisitListResponse, error)
}

// VisitServiceDeps groups the collaborators of the visit service.
type VisitServiceDeps struct {
	DB            *gorm.DB
	Visits        repository.VisitRepository
	Users         repository.UserRepository
	Audit         AuditService
	Notifications NotificationService
	Validator     *validator.Validate
	// Reviewers may review and delete any visit and receive new and updated visit notifications.
	Reviewers rbac.RoleSet
}

type visitService struct {
	db        *gorm.DB
	visits    repository.VisitRepository
	users     repository.UserRepository
	audit     AuditService
	notifier  NotificationService
	validator *validator.Validate
	reviewers rbac.RoleSet
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// txScope carries repositories and services bound to one transaction.
type txScope struct {
	visits   repository.VisitRepository
	users    repository.UserRepository
	audit    AuditService
	notifier NotificationService
	sent     []dto.NotificationResponse
}

// NewVisitService constructs the visit service.
func NewVisitService(deps VisitServiceDeps, logger zerolog.Logger) VisitService {
	reviewers := deps.Reviewers
	if reviewers.Empty() {
		reviewers = rbac.ParseRoles(rbac.RoleKunjunganKoordinator)
	}
	return &visitService{
		db:        deps.DB,
		visits:    deps.Visits,
		users:     deps.Users,
		audit:     deps.Audit,
		notifier:  deps.Notifications,
		validator: deps.Validator,
		reviewers: reviewers,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "visit_service").Logger(),
	}
}

func (s *visitService) Create(ctx context.Context, actor rbac.Principal, req dto.VisitCreateRequest) (dto.VisitResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.VisitResponse{}, err
	}

	visit := models.Visit{
		Name:        plainText(s.sanitizer, req.Name),
		Location:    plainText(s.sanitizer, req.Location),
		Description: plainText(s.sanitizer, req.Description),
		VisitDate:   req.VisitDate,
		VolunteerID: actor.UserID,
		Status:      models.VisitStatusPending,
	}
	if visit.Name == "" {
		return dto.VisitResponse{}, fmt.Errorf("%w: name", ErrEmptyAfterSanitization)
	}

	err := s.inTx(ctx, func(tx *txScope) error {
		if err := tx.visits.Create(ctx, &visit); err != nil {
			return fmt.Errorf("%w: visit: %v", ErrPersistence, err)
		}

		if _, err := tx.audit.Record(ctx, &actor, ActionVisitCreated, EventFields{
			TargetType: visitTarget,
			TargetName: visit.Name,
			NewValue:   visit.Status,
			Meta:       map[string]interface{}{"visit_id": visit.ID},
		}); err != nil {
			return err
		}

		named, err := s.withName(ctx, tx, actor)
		if err != nil {
			return err
		}
		return s.notifyRoles(ctx, tx, s.reviewers, actor.UserID, notification.NewVisitCreated(visit, named))
	})
	if err != nil {
		return dto.VisitResponse{}, err
	}

	return dto.NewVisitResponse(visit), nil
}

func (s *visitService) Update(ctx context.Context, actor rbac.Principal, id uint, req dto.VisitUpdateRequest) (dto.VisitResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.VisitResponse{}, err
	}

	var updated models.Visit
	err := s.inTx(ctx, func(tx *txScope) error {
		visit, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if visit.VolunteerID != actor.UserID {
			return ErrVisitForbidden
		}
		if !visit.Editable() {
			return ErrInvalidVisitState
		}

		oldValues, newValues := map[string]interface{}{}, map[string]interface{}{}
		apply := func(field string, current *string, next *string) {
			if next == nil {
				return
			}
			clean := plainText(s.sanitizer, *next)
			if clean == *current {
				return
			}
			oldValues[field], newValues[field] = *current, clean
			*current = clean
		}
		apply("name", &visit.Name, req.Name)
		apply("location", &visit.Location, req.Location)
		apply("description", &visit.Description, req.Description)
		if req.VisitDate != nil && !req.VisitDate.Equal(visit.VisitDate) {
			oldValues["visit_date"], newValues["visit_date"] = visit.VisitDate, *req.VisitDate
			visit.VisitDate = *req.VisitDate
		}
		if visit.Name == "" {
			return fmt.Errorf("%w: name", ErrEmptyAfterSanitization)
		}
		if visit.Status != models.VisitStatusPending {
			oldValues["status"], newValues["status"] = visit.Status, models.VisitStatusPending
			visit.Status = models.VisitStatusPending
		}
		if len(newValues) == 0 {
			updated = visit
			return nil
		}

		if err := tx.visits.Update(ctx, &visit); err != nil {
			return fmt.Errorf("%w: visit: %v", ErrPersistence, err)
		}

		if _, err := tx.audit.Record(ctx, &actor, ActionVisitUpdated, EventFields{
			TargetType: visitTarget,
			TargetName: visit.Name,
			OldValue:   oldValues,
			NewValue:   newValues,
			Meta:       map[string]interface{}{"visit_id": visit.ID, "changed": changedFields(newValues)},
		}); err != nil {
			return err
		}

		updated = visit
		return s.notifyRoles(ctx, tx, s.reviewers, actor.UserID, notification.NewVisitUpdated(visit, actor))
	})
	if err != nil {
		return dto.VisitResponse{}, err
	}

	return dto.NewVisitResponse(updated), nil
}

func (s *visitService) Verify(ctx context.Context, actor rbac.Principal, id uint) (dto.VisitResponse, error) {
	return s.review(ctx, actor, id, ActionVisitVerified, "", func(visit *models.Visit) notification.Event {
		now := time.Now().UTC()
		reviewer := actor.UserID
		visit.Status = models.VisitStatusVerified
		visit.VerifiedBy = &reviewer
		visit.VerifiedAt = &now
		return notification.NewVisitVerified(*visit)
	})
}

func (s *visitService) Reject(ctx context.Context, actor rbac.Principal, id uint, req dto.VisitRejectRequest) (dto.VisitResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.VisitResponse{}, err
	}
	reason := plainText(s.sanitizer, req.Reason)
	if reason == "" {
		return dto.VisitResponse{}, fmt.Errorf("%w: reason", ErrEmptyAfterSanitization)
	}

	return s.review(ctx, actor, id, ActionVisitRejected, reason, func(visit *models.Visit) notification.Event {
		visit.Status = models.VisitStatusRejected
		visit.RejectReason = reason
		return notification.NewVisitRejected(*visit, reason)
	})
}

func (s *visitService) RequestRevision(ctx context.Context, actor rbac.Principal, id uint, req dto.VisitRevisionRequest) (dto.VisitResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.VisitResponse{}, err
	}
	comment := plainText(s.sanitizer, req.Comment)

	return s.review(ctx, actor, id, ActionVisitNeedsRevision, comment, func(visit *models.Visit) notification.Event {
		visit.Status = models.VisitStatusRevision
		visit.RevisionNote = comment
		return notification.NewVisitNeedsRevision(*visit, comment)
	})
}

// review applies a reviewer decision to a pending visit and notifies its owner.
func (s *visitService) review(ctx context.Context, actor rbac.Principal, id uint, action, note string, decide func(*models.Visit) notification.Event) (dto.VisitResponse, error) {
	var reviewed models.Visit
	err := s.inTx(ctx, func(tx *txScope) error {
		visit, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if visit.Status != models.VisitStatusPending {
			return ErrInvalidVisitState
		}

		previous := visit.Status
		event := decide(&visit)

		if err := tx.visits.Update(ctx, &visit); err != nil {
			return fmt.Errorf("%w: visit: %v", ErrPersistence, err)
		}

		meta := map[string]interface{}{"visit_id": visit.ID, "volunteer_id": visit.VolunteerID}
		if note != "" {
			meta["note"] = note
		}
		if _, err := tx.audit.Record(ctx, &actor, action, EventFields{
			TargetType: visitTarget,
			TargetName: visit.Name,
			Field:      "status",
			OldValue:   previous,
			NewValue:   visit.Status,
			Meta:       meta,
		}); err != nil {
			return err
		}

		reviewed = visit
		return s.notifyUser(ctx, tx, visit.VolunteerID, event)
	})
	if err != nil {
		return dto.VisitResponse{}, err
	}

	return dto.NewVisitResponse(reviewed), nil
}

func (s *visitService) Delete(ctx context.Context, actor rbac.Principal, id uint) error {
	return s.inTx(ctx, func(tx *txScope) error {
		visit, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		ownsVisit := visit.VolunteerID == actor.UserID
		if !ownsVisit && !s.canReview(actor) {
			return ErrVisitForbidden
		}

		if err := tx.visits.Delete(ctx, visit.ID); err != nil {
			return fmt.Errorf("%w: visit: %v", ErrPersistence, err)
		}

		if _, err := tx.audit.Record(ctx, &actor, ActionVisitDeleted, EventFields{
			TargetType: visitTarget,
			TargetName: visit.Name,
			OldValue:   visit.Status,
			Meta:       map[string]interface{}{"visit_id": visit.ID, "volunteer_id": visit.VolunteerID},
		}); err != nil {
			return err
		}

		named, err := s.withName(ctx, tx, actor)
		if err != nil {
			return err
		}
		role, _ := rbac.ResolveRole(&actor)
		event := notification.NewVisitDeleted(visit.Name, named.Name, rbac.Label(role))

		if ownsVisit {
			return s.notifyRoles(ctx, tx, s.reviewers, actor.UserID, event)
		}
		return s.notifyUser(ctx, tx, visit.VolunteerID, event)
	})
}

func (s *visitService) Get(ctx context.Context, actor rbac.Principal, id uint) (dto.VisitResponse, error) {
	visit, err := s.visits.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.VisitResponse{}, ErrVisitNotFound
		}
		return dto.VisitResponse{}, err
	}

	if s.ownVisitsOnly(actor) && visit.VolunteerID != actor.UserID {
		return dto.VisitResponse{}, ErrVisitForbidden
	}

	return dto.NewVisitResponse(visit), nil
}

func (s *visitService) List(ctx context.Context, actor rbac.Principal, req dto.VisitListRequest) (dto.VisitListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.VisitListResponse{}, err
	}

	filter := repository.VisitFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
		Status:   req.Status,
		Search:   req.Search,
	}
	if s.ownVisitsOnly(actor) {
		filter.VolunteerID = &actor.UserID
	} else if req.VolunteerID > 0 {
		filter.VolunteerID = &req.VolunteerID
	}

	visits, total, err := s.visits.List(ctx, filter)
	if err != nil {
		return dto.VisitListResponse{}, err
	}

	items := make([]dto.VisitResponse, 0, len(visits))
	for _, visit := range visits {
		items = append(items, dto.NewVisitResponse(visit))
	}

	return dto.VisitListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

// inTx runs fn in a transaction and broadcasts the notifications it produced once committed.
func (s *visitService) inTx(ctx context.Context, fn func(tx *txScope) error) error {
	var scope *txScope
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope = &txScope{
			visits:   s.visits.WithTx(tx),
			users:    s.users.WithTx(tx),
			audit:    s.audit.WithTx(tx),
			notifier: s.notifier.WithTx(tx),
		}
		return fn(scope)
	})
	if err != nil {
		s.logger.Debug().Err(err).Msg("visit transaction rolled back")
		return err
	}

	if len(scope.sent) > 0 {
		s.notifier.Broadcast(ctx, scope.sent...)
	}
	return nil
}

func (s *visitService) load(ctx context.Context, tx *txScope, id uint) (models.Visit, error) {
	visit, err := tx.visits.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Visit{}, ErrVisitNotFound
		}
		return models.Visit{}, err
	}
	visit.Volunteer = nil
	return visit, nil
}

func (s *visitService) notifyUser(ctx context.Context, tx *txScope, recipientID uint, event notification.Event) error {
	sent, err := tx.notifier.Dispatch(ctx, recipientID, event)
	if err != nil {
		return err
	}
	tx.sent = append(tx.sent, sent)
	return nil
}

func (s *visitService) notifyRoles(ctx context.Context, tx *txScope, roles rbac.RoleSet, exclude uint, event notification.Event) error {
	recipients, err := tx.users.ListByRoles(ctx, roles)
	if err != nil {
		return err
	}

	for _, user := range recipients {
		if user.ID == exclude {
			continue
		}
		if err := s.notifyUser(ctx, tx, user.ID, event); err != nil {
			return err
		}
	}
	return nil
}

// withName fills the actor's display name from the user table when the token carried none.
func (s *visitService) withName(ctx context.Context, tx *txScope, actor rbac.Principal) (rbac.Principal, error) {
	if strings.TrimSpace(actor.Name) != "" {
		return actor, nil
	}

	user, err := tx.users.FindByID(ctx, actor.UserID)
	switch {
	case err == nil && strings.TrimSpace(user.Name) != "":
		actor.Name = user.Name
	case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
		actor.Name = fmt.Sprintf("Pengguna #%d", actor.UserID)
	default:
		return actor, err
	}
	return actor, nil
}

func (s *visitService) canReview(actor rbac.Principal) bool {
	return rbac.Authorize(&actor, s.reviewers) == rbac.Allow || actor.HasRole(rbac.RoleSuperadmin)
}

// ownVisitsOnly restricts volunteers to their own reports.
func (s *visitService) ownVisitsOnly(actor rbac.Principal) bool {
	return actor.HasRole(rbac.RoleRelawan)
}

func changedFields(values map[string]interface{}) []string {
	fields := lo.Keys(values)
	sort.Strings(fields)
	return fields
}
