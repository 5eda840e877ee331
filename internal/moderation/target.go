package moderation

import (
	"context"
	"strings"
	"time"

	"github.com/agora-community/agora/internal/classifier"
	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/internal/notify"
)

// Target is a post or comment as seen by the moderation pipeline
type Target struct {
	Type            models.TargetType       `json:"targetType"`
	ID              string                  `json:"id"`
	AuthorID        string                  `json:"authorId"`
	PostID          string                  `json:"postId,omitempty"`
	PostAuthorID    string                  `json:"-"`
	PostTitle       string                  `json:"postTitle,omitempty"`
	Title           string                  `json:"title,omitempty"`
	Body            string                  `json:"body"`
	Images          []string                `json:"-"`
	Status          models.ModerationStatus `json:"moderationStatus"`
	AIReason        string                  `json:"aiReason,omitempty"`
	ReviewRequested bool                    `json:"reviewRequested"`
	ReportCount     int                     `json:"reportCount"`
	CreatedAt       time.Time               `json:"createdAt"`
}

// Text is the content submitted to the classifier
func (t *Target) Text() string {
	if t.Type == models.TargetPost {
		return t.Title + "\n" + t.Body
	}
	return t.Body
}

func (t *Target) subject(edited bool) notify.Subject {
	s := notify.Subject{
		Type:     t.Type,
		AuthorID: t.AuthorID,
		Title:    t.Title,
		Body:     t.Body,
		Edited:   edited,
	}
	if t.Type == models.TargetPost {
		s.PostID = t.ID
	} else {
		s.PostID = t.PostID
		s.CommentID = t.ID
	}
	return s
}

// Patch is a partial update of a target's moderation fields. Nil fields are left alone.
type Patch struct {
	Status          *models.ModerationStatus
	AIReason        *string
	ReviewRequested *bool
	ReportCount     *int
}

// Filter selects targets for the review queue
type Filter struct {
	Status          *models.ModerationStatus
	ReviewRequested *bool
	Reported        bool
}

// TargetStore loads and updates moderated records
type TargetStore interface {
	// GetTarget returns nil, nil when the record does not exist
	GetTarget(ctx context.Context, typ models.TargetType, id string) (*Target, error)
	UpdateTarget(ctx context.Context, typ models.TargetType, id string, patch Patch) error
	// UpdateTargetIf applies patch only while the record is still in status expected
	UpdateTargetIf(ctx context.Context, typ models.TargetType, id string, expected models.ModerationStatus, patch Patch) (bool, error)
	IncrementCommentCount(ctx context.Context, postID string) error
	ListTargets(ctx context.Context, typ models.TargetType, filter Filter, limit int) ([]*Target, error)
}

// ReportStore reads and resolves pending reports
type ReportStore interface {
	PendingReports(ctx context.Context, typ models.TargetType, targetIDs []string) ([]*models.Report, error)
	ResolveReports(ctx context.Context, ids []string) error
}

// MessageStore reads and updates the notification a review request refers to
type MessageStore interface {
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	SetNotificationStatus(ctx context.Context, id string, status models.NotificationStatus) error
}

// Notifier emits best-effort notifications
type Notifier interface {
	Emit(ctx context.Context, msg notify.Message)
}

// Penalizer adjusts a user's reject count
type Penalizer interface {
	ApplyDelta(ctx context.Context, userID string, delta int) error
}

// Classifier returns an allow/reject verdict for content
type Classifier interface {
	Classify(ctx context.Context, text string, images []string) (classifier.Verdict, error)
}

func statusPtr(s models.ModerationStatus) *models.ModerationStatus { return &s }

func stringPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func trimmed(s string) string { return strings.TrimSpace(s) }
