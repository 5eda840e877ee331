// Package notify delivers user-facing inbox messages.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/pkg/logging"
	"github.com/agora-community/agora/pkg/telemetry"
)

// Message is a notification to emit
type Message struct {
	UserID     string
	Title      string
	Body       string
	Type       models.MessageType
	ActorID    string
	TargetType models.TargetType
	PostID     string
	CommentID  string
}

// Store persists and queries notifications
type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, int64, error)
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	SetNotificationStatus(ctx context.Context, id string, status models.NotificationStatus) error
}

// Service emits notifications and serves a user's inbox
type Service struct {
	store   Store
	logger  *zap.Logger
	emitted metric.Int64Counter
	failed  metric.Int64Counter
}

// NewService creates a notification service
func NewService(store Store) *Service {
	return &Service{
		store:   store,
		logger:  logging.WithComponent("notify"),
		emitted: telemetry.Counter("agora_notifications_emitted_total", "Notifications written to inboxes"),
		failed:  telemetry.Counter("agora_notifications_failed_total", "Notifications dropped after a write failure"),
	}
}

// Emit writes msg to the recipient's inbox. Failures are logged and dropped.
func (s *Service) Emit(ctx context.Context, msg Message) {
	if msg.UserID == "" {
		return
	}
	if msg.Type == "" {
		msg.Type = models.MessageSystem
	}

	n := &models.Notification{
		ID:          uuid.NewString(),
		UserID:      msg.UserID,
		MessageType: msg.Type,
		ActorID:     msg.ActorID,
		Title:       msg.Title,
		Body:        msg.Body,
		TargetType:  msg.TargetType,
		PostID:      msg.PostID,
		CommentID:   msg.CommentID,
		Status:      models.NotificationUnread,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.CreateNotification(ctx, n); err != nil {
		s.failed.Add(ctx, 1)
		logging.FromContext(ctx, s.logger).Error("failed to emit notification",
			zap.String("user_id", msg.UserID),
			zap.String("title", msg.Title),
			zap.Error(err),
		)
		return
	}
	s.emitted.Add(ctx, 1)
}
