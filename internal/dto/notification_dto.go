package dto

import (
	"time"

	"github.com/noah-isme/relawan-api/internal/models"
)

// NotificationListRequest captures a recipient's listing filters.
type NotificationListRequest struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID          uint                   `json:"id"`
	UserID      uint                   `json:"user_id"`
	Type        string                 `json:"type"`
	Message     string                 `json:"message"`
	Data        map[string]interface{} `json:"data"`
	RedirectURL *string                `json:"redirect_url"`
	Read        bool                   `json:"read"`
	ReadAt      *time.Time             `json:"read_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NotificationListResponse wraps a page of notifications with the unread counter.
type NotificationListResponse struct {
	Items  []NotificationResponse `json:"items"`
	Total  int64                  `json:"total"`
	Unread int64                  `json:"unread"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	data := map[string]interface{}{}
	for key, value := range model.Data {
		data[key] = value
	}
	return NotificationResponse{
		ID:          model.ID,
		UserID:      model.UserID,
		Type:        model.Type,
		Message:     model.Message,
		Data:        data,
		RedirectURL: model.RedirectURL,
		Read:        model.Read,
		ReadAt:      model.ReadAt,
		CreatedAt:   model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
