package moderation

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/agora-community/agora/internal/apperr"
	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/internal/notify"
	"github.com/agora-community/agora/pkg/logging"
	"github.com/agora-community/agora/pkg/telemetry"
)

// Decision is a moderator's verdict
type Decision = notify.Decision

const (
	DecisionApprove = notify.DecisionApprove
	DecisionReject  = notify.DecisionReject
	DecisionHide    = notify.DecisionHide
)

var decisionTriggers = map[Decision]Trigger{
	DecisionApprove: TriggerApprove,
	DecisionReject:  TriggerReject,
	DecisionHide:    TriggerHide,
}

// DecisionRequest is a moderator resolving a queued record
type DecisionRequest struct {
	ModeratorID string
	Type        models.TargetType
	ID          string
	Decision    Decision
	Reason      string
}

// Decide applies a moderator decision. The status write is the only step that
// can fail the call; report resolution, penalties, counters and notifications
// are logged on failure.
func (s *Service) Decide(ctx context.Context, req DecisionRequest) (*Target, error) {
	ctx, span := telemetry.StartSpan(ctx, "moderation.decide")
	defer span.End()
	span.SetAttributes(attribute.String("decision", string(req.Decision)))

	if req.ID == "" || !req.Type.Valid() {
		return nil, apperr.Validation("invalid_target")
	}
	trigger, ok := decisionTriggers[req.Decision]
	if !ok {
		return nil, apperr.Validation("invalid_decision")
	}
	reason := trimmed(req.Reason)

	logger := logging.FromContext(ctx, s.logger).With(
		zap.String("target_type", string(req.Type)),
		zap.String("target_id", req.ID),
		zap.String("moderator_id", req.ModeratorID),
	)

	target, err := s.targets.GetTarget(ctx, req.Type, req.ID)
	if err != nil {
		return nil, apperr.Internal("decision_failed", err)
	}
	if target == nil {
		return nil, apperr.NotFound("target_not_found")
	}

	previous := target.Status
	next, err := Transition(previous, trigger)
	if err != nil {
		return nil, apperr.Validation("invalid_state").WithMessage(err.Error())
	}

	pending, err := s.reports.PendingReports(ctx, req.Type, []string{req.ID})
	if err != nil {
		logger.Error("pending report lookup failed", zap.Error(err))
		pending = nil
	}
	reportIDs := make([]string, 0, len(pending))
	for _, r := range pending {
		reportIDs = append(reportIDs, r.ID)
	}

	nextReportCount := target.ReportCount
	if len(reportIDs) > 0 {
		nextReportCount = 0
	}

	if err := s.targets.UpdateTarget(ctx, req.Type, req.ID, Patch{
		Status:          statusPtr(next),
		ReviewRequested: boolPtr(false),
		ReportCount:     intPtr(nextReportCount),
	}); err != nil {
		return nil, apperr.Internal("decision_failed", err)
	}
	s.record(ctx, trigger)

	if len(reportIDs) > 0 {
		if err := s.reports.ResolveReports(ctx, reportIDs); err != nil {
			logger.Error("failed to resolve reports", zap.Int("reports", len(reportIDs)), zap.Error(err))
		}
	}

	if req.Type == models.TargetComment && req.Decision == DecisionApprove &&
		previous != models.StatusActive && previous != models.StatusHidden {
		s.commentPublished(ctx, target)
	}

	rejectedByAI := previous == models.StatusPendingReview && trimmed(target.AIReason) != ""
	switch {
	case req.Decision == DecisionReject && previous != models.StatusRejected && !rejectedByAI:
		s.penalize(ctx, logger, target.AuthorID, 1)
	case req.Decision == DecisionApprove && (previous == models.StatusRejected || rejectedByAI):
		s.penalize(ctx, logger, target.AuthorID, -1)
	}

	if target.AuthorID != "" {
		s.notifier.Emit(ctx, notify.ModeratorDecision(target.subject(false), req.Decision, reason))
	}

	logger.Info("moderation decision applied",
		zap.String("decision", string(req.Decision)),
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
		zap.Int("reports_resolved", len(reportIDs)),
	)

	target.Status = next
	target.ReviewRequested = false
	target.ReportCount = nextReportCount
	return target, nil
}

func (s *Service) penalize(ctx context.Context, logger *zap.Logger, userID string, delta int) {
	if err := s.penalizer.ApplyDelta(ctx, userID, delta); err != nil {
		logger.Error("failed to apply penalty", zap.String("user_id", userID), zap.Int("delta", delta), zap.Error(err))
	}
}
