package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/relawan-api/internal/dto"
	"github.com/noah-isme/relawan-api/internal/models"
	"github.com/noah-isme/relawan-api/internal/notification"
	"github.com/noah-isme/relawan-api/internal/rbac"
	"github.com/noah-isme/relawan-api/internal/repository"
)

type visitFixture struct {
	db          *gorm.DB
	svc         VisitService
	notifier    NotificationService
	coordinator rbac.Principal
	superadmin  rbac.Principal
	volunteer   rbac.Principal
	stranger    rbac.Principal
}

func newVisitFixture(t *testing.T) visitFixture {
	t.Helper()
	db := setupServiceDB(t)

	users := []models.User{
		{Name: "Budi", Email: "budi@example.com", RoleID: lo.ToPtr(uint(4))},
		{Name: "Admin", Email: "admin@example.com", RoleID: lo.ToPtr(uint(1))},
		{Name: "Rina", Email: "rina@example.com", RoleID: lo.ToPtr(uint(6))},
		{Name: "Sari", Email: "sari@example.com", RoleID: lo.ToPtr(uint(6)), RoleName: rbac.RoleRelawan},
	}
	require.NoError(t, db.Create(&users).Error)

	notifier := NewNotificationService(repository.NewNotificationRepository(db), testRenderer(t), nil, testLogger())
	return visitFixture{
		db:          db,
		notifier:    notifier,
		svc:         newTestVisitService(db, notifier),
		coordinator: rbac.Principal{UserID: users[0].ID, Name: "Budi", RoleID: 4},
		superadmin:  rbac.Principal{UserID: users[1].ID, Name: "Admin", Role: rbac.RoleSuperadmin},
		volunteer:   rbac.Principal{UserID: users[2].ID, RoleRef: &rbac.RoleRef{ID: 6, Role: rbac.RoleRelawan}},
		stranger:    rbac.Principal{UserID: users[3].ID, Name: "Sari", RoleName: rbac.RoleRelawan},
	}
}

func newTestVisitService(db *gorm.DB, notifier NotificationService) VisitService {
	return newReviewedVisitService(db, notifier, nil)
}

func newReviewedVisitService(db *gorm.DB, notifier NotificationService, reviewers rbac.RoleSet) VisitService {
	return NewVisitService(VisitServiceDeps{
		DB:            db,
		Visits:        repository.NewVisitRepository(db),
		Users:         repository.NewUserRepository(db),
		Audit:         NewAuditService(repository.NewAuditRecordRepository(db), testLogger()),
		Notifications: notifier,
		Validator:     validator.New(),
		Reviewers:     reviewers,
	}, testLogger())
}

func (f visitFixture) create(t *testing.T) dto.VisitResponse {
	t.Helper()
	visit, err := f.svc.Create(context.Background(), f.volunteer, dto.VisitCreateRequest{
		Name:      "Posyandu A",
		Location:  "Cibubur",
		VisitDate: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return visit
}

func (f visitFixture) inbox(t *testing.T, userID uint) []models.Notification {
	t.Helper()
	var items []models.Notification
	require.NoError(t, f.db.Where("user_id = ?", userID).Order("id").Find(&items).Error)
	return items
}

func (f visitFixture) audit(t *testing.T, action string) []models.AuditRecord {
	t.Helper()
	var records []models.AuditRecord
	require.NoError(t, f.db.Where("action = ?", action).Order("id").Find(&records).Error)
	return records
}

func TestVisitCreateNotifiesCoordinatorsAndAudits(t *testing.T) {
	f := newVisitFixture(t)
	visit := f.create(t)
	require.Equal(t, models.VisitStatusPending, visit.Status)
	require.Equal(t, f.volunteer.UserID, visit.VolunteerID)

	inbox := f.inbox(t, f.coordinator.UserID)
	require.Len(t, inbox, 1)
	require.Equal(t, string(notification.KindNewVisit), inbox[0].Type)
	require.Equal(t, "Rina mengirim kunjungan baru 'Posyandu A'.", inbox[0].Message)

	require.Empty(t, f.inbox(t, f.volunteer.UserID))
	require.Empty(t, f.inbox(t, f.superadmin.UserID))

	records := f.audit(t, ActionVisitCreated)
	require.Len(t, records, 1)
	require.Equal(t, "visit", records[0].Field)
	require.Equal(t, rbac.RoleRelawan, *records[0].ActorRole)
	require.Equal(t, "Posyandu A", *records[0].TargetName)
}

func TestVisitCreateValidatesPayload(t *testing.T) {
	f := newVisitFixture(t)
	_, err := f.svc.Create(context.Background(), f.volunteer, dto.VisitCreateRequest{Name: "AB"})
	require.Error(t, err)
	require.Empty(t, f.audit(t, ActionVisitCreated))
}

func TestVisitMarkupOnlyInputIsRejected(t *testing.T) {
	f := newVisitFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.volunteer, dto.VisitCreateRequest{Name: "<script>alert(1)</script>", VisitDate: time.Now()})
	require.ErrorIs(t, err, ErrEmptyAfterSanitization)

	visit := f.create(t)
	markup := "<b></b>"
	_, err = f.svc.Update(ctx, f.volunteer, visit.ID, dto.VisitUpdateRequest{Name: &markup})
	require.ErrorIs(t, err, ErrEmptyAfterSanitization)

	_, err = f.svc.Reject(ctx, f.coordinator, visit.ID, dto.VisitRejectRequest{Reason: "<script>xx</script>"})
	require.ErrorIs(t, err, ErrEmptyAfterSanitization)

	stored, err := f.svc.Get(ctx, f.coordinator, visit.ID)
	require.NoError(t, err)
	require.Equal(t, "Posyandu A", stored.Name)
	require.Equal(t, models.VisitStatusPending, stored.Status)
	require.Len(t, f.audit(t, ActionVisitCreated), 1)
	require.Empty(t, f.audit(t, ActionVisitUpdated))
	require.Empty(t, f.audit(t, ActionVisitRejected))
}

func TestVisitUpdateWithoutChangesIsNoop(t *testing.T) {
	f := newVisitFixture(t)
	visit := f.create(t)
	name := "Posyandu A"
	location := " Cibubur "

	unchanged, err := f.svc.Update(context.Background(), f.volunteer, visit.ID, dto.VisitUpdateRequest{Name: &name, Location: &location})
	require.NoError(t, err)
	require.Equal(t, models.VisitStatusPending, unchanged.Status)
	require.Equal(t, "Cibubur", unchanged.Location)

	require.Empty(t, f.audit(t, ActionVisitUpdated))
	require.Len(t, f.inbox(t, f.coordinator.UserID), 1)
}

func TestVisitReviewersFollowConfiguredRoles(t *testing.T) {
	f := newVisitFixture(t)
	paslon := models.User{Name: "Dewi", Email: "dewi@example.com", RoleID: lo.ToPtr(uint(2))}
	require.NoError(t, f.db.Create(&paslon).Error)
	svc := newReviewedVisitService(f.db, f.notifier, rbac.ParseRoles("admin_paslon|kunjungan_koordinator"))
	ctx := context.Background()

	visit, err := svc.Create(ctx, f.volunteer, dto.VisitCreateRequest{Name: "Balai Desa", VisitDate: time.Now()})
	require.NoError(t, err)

	inbox := f.inbox(t, paslon.ID)
	require.Len(t, inbox, 1)
	require.Equal(t, string(notification.KindNewVisit), inbox[0].Type)
	require.Len(t, f.inbox(t, f.coordinator.UserID), 1)

	reviewer := rbac.Principal{UserID: paslon.ID, Name: "Dewi", RoleID: 2}
	require.NoError(t, svc.Delete(ctx, reviewer, visit.ID))

	owner := f.inbox(t, f.volunteer.UserID)
	require.Len(t, owner, 1)
	require.Equal(t, "Kunjungan 'Balai Desa' telah dihapus oleh Dewi (Admin Paslon).", owner[0].Message)
}

func TestVisitUpdateIsOwnerOnlyAndLinksPendingListing(t *testing.T) {
	f := newVisitFixture(t)
	visit := f.create(t)
	location := "Depok"
	ctx := context.Background()

	_, err := f.svc.Update(ctx, f.stranger, visit.ID, dto.VisitUpdateRequest{Location: &location})
	require.ErrorIs(t, err, ErrVisitForbidden)

	updated, err := f.svc.Update(ctx, f.volunteer, visit.ID, dto.VisitUpdateRequest{Location: &location})
	require.NoError(t, err)
	require.Equal(t, "Depok", updated.Location)

	inbox := f.inbox(t, f.coordinator.UserID)
	require.Len(t, inbox, 2)
	require.Equal(t, string(notification.KindVisitUpdated), inbox[1].Type)
	require.NotNil(t, inbox[1].RedirectURL)
	require.Contains(t, *inbox[1].RedirectURL, "status=pending")
	require.Contains(t, *inbox[1].RedirectURL, "relawan_id=")

	records := f.audit(t, ActionVisitUpdated)
	require.Len(t, records, 1)
	require.JSONEq(t, `{"location":"Cibubur"}`, *records[0].OldValue)
	require.JSONEq(t, `{"location":"Depok"}`, *records[0].NewValue)
}

func TestVisitRevisionNotifiesOwnerAndReopensEditing(t *testing.T) {
	f := newVisitFixture(t)
	visit := f.create(t)
	ctx := context.Background()

	revised, err := f.svc.RequestRevision(ctx, f.coordinator, visit.ID, dto.VisitRevisionRequest{Comment: "Foto kurang jelas"})
	require.NoError(t, err)
	require.Equal(t, models.VisitStatusRevision, revised.Status)

	inbox := f.inbox(t, f.volunteer.UserID)
	require.Len(t, inbox, 1)
	require.Equal(t, "Kunjungan 'Posyandu A' perlu direvisi. Catatan: Foto kurang jelas.", inbox[0].Message)
	require.Equal(t, fmt.Sprintf("/kunjungan/%d/edit", visit.ID), *inbox[0].RedirectURL)

	_, err = f.svc.Verify(ctx, f.coordinator, visit.ID)
	require.ErrorIs(t, err, ErrInvalidVisitState)

	name := "Posyandu A Baru"
	resubmitted, err := f.svc.Update(ctx, f.volunteer, visit.ID, dto.VisitUpdateRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, models.VisitStatusPending, resubmitted.Status)

	records := f.audit(t, ActionVisitNeedsRevision)
	require.Len(t, records, 1)
	require.Equal(t, "status", records[0].Field)
	require.Equal(t, models.VisitStatusPending, *records[0].OldValue)
	require.Equal(t, models.VisitStatusRevision, *records[0].NewValue)
}

func TestVisitRejectRequiresReason(t *testing.T) {
	f := newVisitFixture(t)
	visit := f.create(t)
	ctx := context.Background()

	_, err := f.svc.Reject(ctx, f.coordinator, visit.ID, dto.VisitRejectRequest{})
	require.Error(t, err)

	rejected, err := f.svc.Reject(ctx, f.coordinator, visit.ID, dto.VisitRejectRequest{Reason: "Lokasi salah."})
	require.NoError(t, err)
	require.Equal(t, models.VisitStatusRejected, rejected.Status)

	inbox := f.inbox(t, f.volunteer.UserID)
	require.Len(t, inbox, 1)
	require.Equal(t, "Kunjungan 'Posyandu A' ditolak. Alasan: Lokasi salah.", inbox[0].Message)
	require.Nil(t, inbox[0].RedirectURL)

	location := "Depok"
	_, err = f.svc.Update(ctx, f.volunteer, visit.ID, dto.VisitUpdateRequest{Location: &location})
	require.ErrorIs(t, err, ErrInvalidVisitState)
}

func TestVisitVerifyStampsReviewer(t *testing.T) {
	f := newVisitFixture(t)
	visit := f.create(t)

	verified, err := f.svc.Verify(context.Background(), f.coordinator, visit.ID)
	require.NoError(t, err)
	require.Equal(t, models.VisitStatusVerified, verified.Status)
	require.Equal(t, f.coordinator.UserID, *verified.VerifiedBy)
	require.NotNil(t, verified.VerifiedAt)

	inbox := f.inbox(t, f.volunteer.UserID)
	require.Len(t, inbox, 1)
	require.Equal(t, string(notification.KindVisitVerified), inbox[0].Type)

	_, err = f.svc.Verify(context.Background(), f.coordinator, 9999)
	require.ErrorIs(t, err, ErrVisitNotFound)
}

func TestVisitDeleteByCoordinatorNotifiesOwnerWithoutLink(t *testing.T) {
	f := newVisitFixture(t)
	visit := f.create(t)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.Delete(ctx, f.stranger, visit.ID), ErrVisitForbidden)
	require.NoError(t, f.svc.Delete(ctx, f.coordinator, visit.ID))

	inbox := f.inbox(t, f.volunteer.UserID)
	require.Len(t, inbox, 1)
	require.Equal(t, string(notification.KindVisitDeleted), inbox[0].Type)
	require.Equal(t, "Kunjungan 'Posyandu A' telah dihapus oleh Budi (Koordinator Kunjungan).", inbox[0].Message)
	require.Nil(t, inbox[0].RedirectURL)

	records := f.audit(t, ActionVisitDeleted)
	require.Len(t, records, 1)
	require.Equal(t, rbac.RoleKunjunganKoordinator, *records[0].ActorRole)

	_, err := f.svc.Get(ctx, f.coordinator, visit.ID)
	require.ErrorIs(t, err, ErrVisitNotFound)
}

func TestVisitDeleteByOwnerNotifiesCoordinators(t *testing.T) {
	f := newVisitFixture(t)
	visit := f.create(t)

	require.NoError(t, f.svc.Delete(context.Background(), f.volunteer, visit.ID))

	inbox := f.inbox(t, f.coordinator.UserID)
	require.Len(t, inbox, 2)
	require.Equal(t, string(notification.KindVisitDeleted), inbox[1].Type)
	require.Equal(t, "Kunjungan 'Posyandu A' telah dihapus oleh Rina (Relawan).", inbox[1].Message)
	require.Nil(t, inbox[1].RedirectURL)
	require.Empty(t, f.inbox(t, f.volunteer.UserID))
}

func TestVisitListScopesVolunteersToOwnReports(t *testing.T) {
	f := newVisitFixture(t)
	f.create(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.stranger, dto.VisitCreateRequest{Name: "Pasar Minggu", VisitDate: time.Now()})
	require.NoError(t, err)

	mine, err := f.svc.List(ctx, f.volunteer, dto.VisitListRequest{VolunteerID: f.stranger.UserID})
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	require.Equal(t, "Posyandu A", mine.Items[0].Name)

	all, err := f.svc.List(ctx, f.coordinator, dto.VisitListRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), all.Pagination.TotalItems)

	_, err = f.svc.List(ctx, f.coordinator, dto.VisitListRequest{Status: "archived"})
	require.Error(t, err)

	_, err = f.svc.Get(ctx, f.stranger, mine.Items[0].ID)
	require.ErrorIs(t, err, ErrVisitForbidden)

	found, err := f.svc.Get(ctx, f.superadmin, mine.Items[0].ID)
	require.NoError(t, err)
	require.Equal(t, "Rina", found.VolunteerName)
}

type failingNotifier struct {
	NotificationService
}

func (n failingNotifier) Dispatch(context.Context, uint, notification.Event) (dto.NotificationResponse, error) {
	return dto.NotificationResponse{}, errors.New("notification store unavailable")
}

func (n failingNotifier) WithTx(*gorm.DB) NotificationService { return n }

func TestVisitMutationRollsBackWhenNotificationFails(t *testing.T) {
	f := newVisitFixture(t)
	svc := newTestVisitService(f.db, failingNotifier{NotificationService: f.notifier})

	_, err := svc.Create(context.Background(), f.volunteer, dto.VisitCreateRequest{Name: "Posyandu A", VisitDate: time.Now()})
	require.Error(t, err)

	var visits int64
	require.NoError(t, f.db.Model(&models.Visit{}).Count(&visits).Error)
	require.Zero(t, visits)
	require.Empty(t, f.audit(t, ActionVisitCreated))
}
