package dto

import (
	"time"

	"github.com/noah-isme/relawan-api/internal/models"
)

// VisitCreateRequest is the payload to submit a visit report.
type VisitCreateRequest struct {
	Name        string    `json:"name" validate:"required,min=3,max=255"`
	Location    string    `json:"location" validate:"omitempty,max=255"`
	Description string    `json:"description" validate:"omitempty,max=5000"`
	VisitDate   time.Time `json:"visit_date" validate:"required"`
}

// VisitUpdateRequest captures partial updates by the owning volunteer.
type VisitUpdateRequest struct {
	Name        *string    `json:"name" validate:"omitempty,min=3,max=255"`
	Location    *string    `json:"location" validate:"omitempty,max=255"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	VisitDate   *time.Time `json:"visit_date"`
}

// VisitRejectRequest carries the reviewer's rejection reason.
type VisitRejectRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=2000"`
}

// VisitRevisionRequest carries an optional note for the volunteer.
type VisitRevisionRequest struct {
	Comment string `json:"comment" validate:"omitempty,max=2000"`
}

// VisitListRequest defines filters for listing visits.
type VisitListRequest struct {
	Page        int
	PageSize    int
	VolunteerID uint
	Status      string `validate:"omitempty,oneof=pending verified rejected revision"`
	Search      string
}

// VisitResponse describes a visit returned by the API.
type VisitResponse struct {
	ID            uint       `json:"id"`
	Name          string     `json:"name"`
	Location      string     `json:"location"`
	Description   string     `json:"description"`
	VisitDate     time.Time  `json:"visit_date"`
	VolunteerID   uint       `json:"volunteer_id"`
	VolunteerName string     `json:"volunteer_name,omitempty"`
	Status        string     `json:"status"`
	RejectReason  string     `json:"reject_reason,omitempty"`
	RevisionNote  string     `json:"revision_note,omitempty"`
	VerifiedBy    *uint      `json:"verified_by,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// VisitListResponse wraps paginated visits.
type VisitListResponse struct {
	Items      []VisitResponse `json:"items"`
	Pagination PaginationMeta  `json:"pagination"`
}

// NewVisitResponse converts a model into a DTO.
func NewVisitResponse(visit models.Visit) VisitResponse {
	response := VisitResponse{
		ID:           visit.ID,
		Name:         visit.Name,
		Location:     visit.Location,
		Description:  visit.Description,
		VisitDate:    visit.VisitDate,
		VolunteerID:  visit.VolunteerID,
		Status:       visit.Status,
		RejectReason: visit.RejectReason,
		RevisionNote: visit.RevisionNote,
		VerifiedBy:   visit.VerifiedBy,
		VerifiedAt:   visit.VerifiedAt,
		CreatedAt:    visit.CreatedAt,
		UpdatedAt:    visit.UpdatedAt,
	}
	if visit.Volunteer != nil {
		response.VolunteerName = visit.Volunteer.Name
	}
	return response
}
