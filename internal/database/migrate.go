package database

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/relawan-api/internal/models"
	"github.com/noah-isme/relawan-api/internal/rbac"
)

// Migrate creates the schema and provisions the role reference table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.Visit{},
		&models.AuditRecord{},
		&models.Notification{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return SeedRoles(db)
}

// SeedRoles upserts every registry role so foreign keys and joins resolve.
func SeedRoles(db *gorm.DB) error {
	registry := rbac.All()
	rows := make([]models.Role, 0, len(registry))
	for _, role := range registry {
		rows = append(rows, models.Role{ID: role.ID, Name: role.Name, Label: role.Label})
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "label"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}
	return nil
}
