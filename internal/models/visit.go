package models

import "time"

// Visit statuses.
const (
	VisitStatusPending  = "pending"
	VisitStatusVerified = "verified"
	VisitStatusRejected = "rejected"
	VisitStatusRevision = "revision"
)

// Visit is a field-visit report (kunjungan) submitted by a volunteer.
type Visit struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"size:255;not null" json:"name"`
	Location     string     `gorm:"size:255" json:"location"`
	Description  string     `gorm:"type:text" json:"description"`
	VisitDate    time.Time  `json:"visit_date"`
	VolunteerID  uint       `gorm:"index;not null" json:"volunteer_id"`
	Volunteer    *User      `gorm:"foreignKey:VolunteerID" json:"volunteer,omitempty"`
	Status       string     `gorm:"size:32;index;not null;default:pending" json:"status"`
	RejectReason string     `gorm:"type:text" json:"reject_reason"`
	RevisionNote string     `gorm:"type:text" json:"revision_note"`
	VerifiedBy   *uint      `json:"verified_by"`
	VerifiedAt   *time.Time `json:"verified_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Editable reports whether the owner may still change the visit.
func (v Visit) Editable() bool {
	return v.Status == VisitStatusPending || v.Status == VisitStatusRevision
}
