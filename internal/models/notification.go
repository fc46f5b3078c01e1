package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app message addressed to a single recipient.
type Notification struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	UserID      uint              `gorm:"index;not null" json:"user_id"`
	Type        string            `gorm:"size:64;index;not null" json:"type"`
	Message     string            `gorm:"type:text;not null" json:"message"`
	Data        datatypes.JSONMap `gorm:"type:json" json:"data"`
	RedirectURL *string           `gorm:"size:512" json:"redirect_url"`
	Read        bool              `gorm:"not null;default:false;index" json:"read"`
	ReadAt      *time.Time        `json:"read_at"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
