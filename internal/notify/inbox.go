package notify

import (
	"context"
	"fmt"

	"github.com/agora-community/agora/internal/apperr"
	"github.com/agora-community/agora/internal/models"
)

// Page is one page of a user's inbox
type Page struct {
	Items []*models.Notification `json:"items"`
	Total int64                  `json:"total"`
}

// List returns the user's visible notifications, newest first
func (s *Service) List(ctx context.Context, userID string, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	items, total, err := s.store.ListNotifications(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return &Page{Items: items, Total: total}, nil
}

// SetStatus changes the status of a notification owned by userID
func (s *Service) SetStatus(ctx context.Context, userID, messageID string, status models.NotificationStatus) error {
	if messageID == "" {
		return apperr.Validation("message_id_missing")
	}
	switch status {
	case models.NotificationRead, models.NotificationActioned, models.NotificationHidden, models.NotificationUnread:
	default:
		return apperr.Validation("invalid_status")
	}

	n, err := s.store.GetNotification(ctx, messageID)
	if err != nil {
		return fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return apperr.NotFound("message_not_found")
	}
	if n.UserID != userID {
		return apperr.Permission("not_owner")
	}

	if err := s.store.SetNotificationStatus(ctx, messageID, status); err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}
