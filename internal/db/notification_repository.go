package db

import (
	"context"

	"github.com/agora-community/agora/internal/models"
)

// NotificationRepository provides inbox operations
type NotificationRepository struct {
	*Repository
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(repo *Repository) *NotificationRepository {
	return &NotificationRepository{Repository: repo}
}

// CreateNotification creates a new notification
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// ListNotifications returns a user's visible notifications, newest first, and their total
func (r *NotificationRepository) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND status <> ?", userID, models.NotificationHidden).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []*models.Notification
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, models.NotificationHidden).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetNotification retrieves a notification by ID
func (r *NotificationRepository) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	found, err := r.first(ctx, &n, "id = ?", id)
	if err != nil || !found {
		return nil, err
	}
	return &n, nil
}

// SetNotificationStatus updates a notification's status
func (r *NotificationRepository) SetNotificationStatus(ctx context.Context, id string, status models.NotificationStatus) error {
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Update("status", status).Error
}
