package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/relawan-api/internal/models"
	"github.com/noah-isme/relawan-api/internal/rbac"
)

func TestAuditRecordRepositoryListFiltersAndPaginates(t *testing.T) {
	db := setupTestDB(t, &models.AuditRecord{})
	repo := NewAuditRecordRepository(db)
	ctx := context.Background()

	actor := uint(4)
	visit := "visit"
	records := []models.AuditRecord{
		{ActorID: &actor, Action: "visit_created", TargetType: &visit, Field: "visit", CreatedAt: time.Now().Add(-2 * time.Minute)},
		{ActorID: &actor, Action: "visit_verified", TargetType: &visit, Field: "status", CreatedAt: time.Now().Add(-time.Minute)},
		{Action: "system_boot", Field: "-", CreatedAt: time.Now()},
	}
	for i := range records {
		require.NoError(t, repo.Create(ctx, &records[i]))
	}

	items, total, err := repo.List(ctx, AuditRecordFilter{ActorID: &actor})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, "visit_verified", items[0].Action)

	items, total, err = repo.List(ctx, AuditRecordFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, items, 1)
	require.Equal(t, "visit_created", items[0].Action)

	items, _, err = repo.List(ctx, AuditRecordFilter{Action: "system_boot"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Nil(t, items[0].ActorID)
}

func TestAuditRecordsAreAppendOnly(t *testing.T) {
	db := setupTestDB(t, &models.AuditRecord{})
	repo := NewAuditRecordRepository(db)

	record := models.AuditRecord{Action: "visit_created", Field: "visit", Meta: datatypes.JSONMap{"k": "v"}}
	require.NoError(t, repo.Create(context.Background(), &record))

	record.Action = "tampered"
	err := db.Save(&record).Error
	require.True(t, errors.Is(err, models.ErrAuditRecordImmutable))

	err = db.Delete(&record).Error
	require.True(t, errors.Is(err, models.ErrAuditRecordImmutable))

	var stored models.AuditRecord
	require.NoError(t, db.First(&stored, record.ID).Error)
	require.Equal(t, "visit_created", stored.Action)
}

func TestNotificationRepositoryRecipientScope(t *testing.T) {
	db := setupTestDB(t, &models.Notification{})
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	mine := models.Notification{UserID: 1, Type: "visit_verified", Message: "ok"}
	other := models.Notification{UserID: 2, Type: "visit_verified", Message: "ok"}
	require.NoError(t, repo.Create(ctx, &mine))
	require.NoError(t, repo.Create(ctx, &other))
	require.NoError(t, repo.Create(ctx, &models.Notification{UserID: 1, Type: "new_visit", Message: "baru"}))

	unread, err := repo.CountUnread(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), unread)

	_, err = repo.MarkRead(ctx, other.ID, 1)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	read, err := repo.MarkRead(ctx, mine.ID, 1)
	require.NoError(t, err)
	require.True(t, read.Read)
	require.NotNil(t, read.ReadAt)

	items, total, err := repo.ListByUser(ctx, NotificationFilter{UserID: 1, UnreadOnly: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "new_visit", items[0].Type)

	affected, err := repo.MarkAllRead(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	require.True(t, errors.Is(repo.Delete(ctx, other.ID, 1), gorm.ErrRecordNotFound))
	require.NoError(t, repo.Delete(ctx, mine.ID, 1))

	items, total, err = repo.ListByUser(ctx, NotificationFilter{UserID: 1})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, items, 1)
}

func TestUserRepositoryListByRolesMatchesAnyRoleShape(t *testing.T) {
	db := setupTestDB(t, &models.Role{}, &models.User{})
	repo := NewUserRepository(db)

	require.NoError(t, db.Create(&[]models.User{
		{Name: "Kora", Email: "kora@example.com", RoleID: lo.ToPtr(uint(4))},
		{Name: "Koni", Email: "koni@example.com", RoleName: rbac.RoleKunjunganKoordinator},
		{Name: "Rela", Email: "rela@example.com", RoleID: lo.ToPtr(uint(6)), RoleName: rbac.RoleRelawan},
	}).Error)

	users, err := repo.ListByRoles(context.Background(), rbac.ParseRoles("4"))
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "Kora", users[0].Name)
	require.Equal(t, "Koni", users[1].Name)

	users, err = repo.ListByRoles(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestUserWithoutRoleIDSatisfiesRoleForeignKey(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Role{}, &models.User{}))
	require.NoError(t, db.Create(&models.Role{ID: 4, Name: rbac.RoleKunjunganKoordinator, Label: "Koordinator Kunjungan"}).Error)

	synonymOnly := models.User{Name: "Koni", Email: "koni@example.com", RoleName: rbac.RoleKunjunganKoordinator}
	require.NoError(t, db.Create(&synonymOnly).Error)
	require.Error(t, db.Create(&models.User{Name: "Hilang", Email: "hilang@example.com", RoleID: lo.ToPtr(uint(42))}).Error)

	repo := NewUserRepository(db)
	found, err := repo.FindByID(context.Background(), synonymOnly.ID)
	require.NoError(t, err)
	require.Nil(t, found.RoleID)
	require.Nil(t, found.Role)

	users, err := repo.ListByRoles(context.Background(), rbac.ParseRoles("4"))
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "Koni", users[0].Name)
}

func TestVisitRepositoryCRUDAndFilters(t *testing.T) {
	db := setupTestDB(t, &models.Role{}, &models.User{}, &models.Visit{})
	repo := NewVisitRepository(db)
	ctx := context.Background()

	owner := models.User{Name: "Rela", Email: "rela@example.com", RoleID: lo.ToPtr(uint(6))}
	require.NoError(t, db.Create(&owner).Error)

	first := models.Visit{Name: "Posyandu A", Location: "Cibubur", VolunteerID: owner.ID, Status: models.VisitStatusPending}
	second := models.Visit{Name: "Pasar Minggu", Location: "Jakarta", VolunteerID: owner.ID, Status: models.VisitStatusVerified}
	require.NoError(t, repo.Create(ctx, &first))
	require.NoError(t, repo.Create(ctx, &second))

	found, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Volunteer)
	require.Equal(t, "Rela", found.Volunteer.Name)

	found.Status = models.VisitStatusRevision
	require.NoError(t, repo.Update(ctx, &found))

	items, total, err := repo.List(ctx, VisitFilter{Status: models.VisitStatusRevision})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, first.ID, items[0].ID)

	items, _, err = repo.List(ctx, VisitFilter{Search: "pasar", VolunteerID: &owner.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, second.ID, items[0].ID)

	require.NoError(t, repo.Delete(ctx, first.ID))
	require.True(t, errors.Is(repo.Delete(ctx, first.ID), gorm.ErrRecordNotFound))
	_, err = repo.FindByID(ctx, first.ID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func setupTestDB(t *testing.T, entities ...interface{}) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(entities...))
	return db
}
