package models

import "time"

// Role is the persisted copy of the role registry, provisioned at migrate time.
type Role struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"size:64;uniqueIndex;not null" json:"role"`
	Label string `gorm:"size:128;not null" json:"label"`
}

// User is an account able to act on the system. RoleID stays NULL for accounts
// provisioned through role_name only.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex" json:"email"`
	RoleID    *uint     `gorm:"index" json:"role_id"`
	Role      *Role     `gorm:"foreignKey:RoleID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"role,omitempty"`
	RoleName  string    `gorm:"size:64;index" json:"role_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
