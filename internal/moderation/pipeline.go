package moderation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/internal/notify"
	"github.com/agora-community/agora/pkg/logging"
	"github.com/agora-community/agora/pkg/telemetry"
)

// Classify runs the classifier over a pending_ai record and moves it to
// active, rejected or pending_review. Records no longer in pending_ai are left
// untouched, so the call is safe to repeat.
func (s *Service) Classify(ctx context.Context, typ models.TargetType, id string, edited bool) error {
	ctx, span := telemetry.StartSpan(ctx, "moderation.classify")
	defer span.End()
	span.SetAttributes(attribute.String("target_type", string(typ)), attribute.String("target_id", id))

	logger := logging.FromContext(ctx, s.logger).With(zap.String("target_type", string(typ)), zap.String("target_id", id))

	target, err := s.targets.GetTarget(ctx, typ, id)
	if err != nil {
		return fmt.Errorf("load target: %w", err)
	}
	if target == nil {
		logger.Warn("classification target vanished")
		return nil
	}
	if target.Status != models.StatusPendingAI {
		logger.Debug("classification skipped, target already moderated", zap.String("status", string(target.Status)))
		return nil
	}

	verdict, classifyErr := s.classifier.Classify(ctx, target.Text(), target.Images)
	if classifyErr != nil {
		logger.Warn("classification failed, falling back to human review", zap.Error(classifyErr))
		return s.fallback(ctx, target, edited)
	}

	if verdict.Allow {
		next, _ := Transition(target.Status, TriggerClassifierAllow)
		ok, err := s.targets.UpdateTargetIf(ctx, typ, id, models.StatusPendingAI, Patch{
			Status:   statusPtr(next),
			AIReason: stringPtr(""),
		})
		if err != nil {
			logger.Error("failed to store allow verdict", zap.Error(err))
			return s.fallback(ctx, target, edited)
		}
		if !ok {
			return nil
		}
		s.record(ctx, TriggerClassifierAllow)

		if typ == models.TargetComment {
			s.commentPublished(ctx, target)
		}
		return nil
	}

	reason := trimmed(verdict.Reason)
	if reason == "" {
		reason = notify.DefaultRejectReason
	}
	next, _ := Transition(target.Status, TriggerClassifierReject)
	ok, err := s.targets.UpdateTargetIf(ctx, typ, id, models.StatusPendingAI, Patch{
		Status:   statusPtr(next),
		AIReason: stringPtr(reason),
	})
	if err != nil {
		logger.Error("failed to store reject verdict", zap.Error(err))
		return s.fallback(ctx, target, edited)
	}
	if !ok {
		return nil
	}
	s.record(ctx, TriggerClassifierReject)

	if err := s.penalizer.ApplyDelta(ctx, target.AuthorID, 1); err != nil {
		logger.Error("failed to apply reject penalty", zap.String("user_id", target.AuthorID), zap.Error(err))
	}
	s.notifier.Emit(ctx, notify.ClassificationRejected(target.subject(edited), reason))
	return nil
}

// FailClassification parks a record whose classification was given up on in
// pending_review. Records no longer in pending_ai are left untouched.
func (s *Service) FailClassification(ctx context.Context, typ models.TargetType, id string, edited bool) error {
	ctx, span := telemetry.StartSpan(ctx, "moderation.fail_classification")
	defer span.End()
	span.SetAttributes(attribute.String("target_type", string(typ)), attribute.String("target_id", id))

	target, err := s.targets.GetTarget(ctx, typ, id)
	if err != nil {
		return fmt.Errorf("load target: %w", err)
	}
	if target == nil || target.Status != models.StatusPendingAI {
		return nil
	}
	logging.FromContext(ctx, s.logger).Warn("classification abandoned, falling back to human review",
		zap.String("target_type", string(typ)), zap.String("target_id", id))
	return s.fallback(ctx, target, edited)
}

// fallback parks the record in pending_review so it never stays in pending_ai
func (s *Service) fallback(ctx context.Context, target *Target, edited bool) error {
	next, _ := Transition(models.StatusPendingAI, TriggerClassifierFailure)
	ok, err := s.targets.UpdateTargetIf(ctx, target.Type, target.ID, models.StatusPendingAI, Patch{
		Status:   statusPtr(next),
		AIReason: stringPtr(""),
	})
	if err != nil {
		return fmt.Errorf("write review fallback: %w", err)
	}
	if !ok {
		return nil
	}
	s.record(ctx, TriggerClassifierFailure)
	s.notifier.Emit(ctx, notify.ClassificationFailed(target.subject(edited)))
	return nil
}

// commentPublished bumps the parent post's counter and tells the post author
func (s *Service) commentPublished(ctx context.Context, comment *Target) {
	if comment.PostID == "" {
		return
	}
	if err := s.targets.IncrementCommentCount(ctx, comment.PostID); err != nil {
		s.logger.Error("failed to bump comment count", zap.String("post_id", comment.PostID), zap.Error(err))
	}
	if comment.PostAuthorID != "" && comment.PostAuthorID != comment.AuthorID {
		s.notifier.Emit(ctx, notify.NewComment(comment.PostAuthorID, comment.AuthorID, comment.PostID, comment.ID, comment.Body))
	}
}

func (s *Service) record(ctx context.Context, trigger Trigger) {
	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", string(trigger))))
}
