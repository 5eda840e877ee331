package moderation

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/agora-community/agora/internal/apperr"
	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/pkg/telemetry"
)

const (
	reasonMarker      = "原因："
	reasonMarkerASCII = "原因:"
)

// ReviewRequest is an author asking for a human to look at rejected content
type ReviewRequest struct {
	UserID    string
	Type      models.TargetType
	ID        string
	MessageID string
}

// ExtractReason returns the text after the last reason marker in a
// notification body, or "" when there is none
func ExtractReason(body string) string {
	idx := strings.LastIndex(body, reasonMarker)
	marker := reasonMarker
	if idx == -1 {
		idx = strings.LastIndex(body, reasonMarkerASCII)
		marker = reasonMarkerASCII
	}
	if idx == -1 {
		return ""
	}
	return strings.TrimSpace(body[idx+len(marker):])
}

// RequestReview moves the requester's rejected record to pending_review
func (s *Service) RequestReview(ctx context.Context, req ReviewRequest) (*Target, error) {
	ctx, span := telemetry.StartSpan(ctx, "moderation.request_review")
	defer span.End()

	if req.ID == "" || !req.Type.Valid() {
		return nil, apperr.Validation("invalid_target")
	}

	target, err := s.targets.GetTarget(ctx, req.Type, req.ID)
	if err != nil {
		return nil, apperr.Internal("review_request_failed", err)
	}
	if target == nil {
		return nil, apperr.NotFound("target_not_found")
	}
	if target.AuthorID != req.UserID {
		return nil, apperr.Permission("not_owner")
	}

	next, err := Transition(target.Status, TriggerReviewRequest)
	if err != nil {
		return nil, apperr.Validation("invalid_state").WithMessage(err.Error())
	}

	recovered := s.consumeMessage(ctx, req.UserID, req.MessageID)

	patch := Patch{
		Status:          statusPtr(next),
		ReviewRequested: boolPtr(true),
	}
	if trimmed(target.AIReason) == "" && recovered != "" {
		patch.AIReason = stringPtr(recovered)
		target.AIReason = recovered
	}

	if err := s.targets.UpdateTarget(ctx, req.Type, req.ID, patch); err != nil {
		return nil, apperr.Internal("review_request_failed", err)
	}
	s.record(ctx, TriggerReviewRequest)

	target.Status = next
	target.ReviewRequested = true
	return target, nil
}

// consumeMessage marks the referenced notification actioned and returns the
// reason it carried. Missing or foreign messages are ignored.
func (s *Service) consumeMessage(ctx context.Context, userID, messageID string) string {
	if messageID == "" {
		return ""
	}
	msg, err := s.messages.GetNotification(ctx, messageID)
	if err != nil {
		s.logger.Warn("review request message lookup failed", zap.String("message_id", messageID), zap.Error(err))
		return ""
	}
	if msg == nil || msg.UserID != userID {
		return ""
	}
	if err := s.messages.SetNotificationStatus(ctx, messageID, models.NotificationActioned); err != nil {
		s.logger.Warn("failed to mark message actioned", zap.String("message_id", messageID), zap.Error(err))
	}
	return ExtractReason(msg.Body)
}

// IsInvalidTransition reports whether err came from a rejected state change
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition) || apperr.Is(err, "invalid_state")
}
