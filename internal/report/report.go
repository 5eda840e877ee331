// Package report records user reports and hides content that collects too many.
package report

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/agora-community/agora/internal/apperr"
	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/internal/moderation"
	"github.com/agora-community/agora/internal/textutil"
	"github.com/agora-community/agora/pkg/logging"
	"github.com/agora-community/agora/pkg/telemetry"
)

// DetailMaxGraphemes bounds the free-text part of a report
const DetailMaxGraphemes = 500

// DefaultThreshold is the pending report count that hides a record
const DefaultThreshold = 5

// Store persists reports and the target's report counter
type Store interface {
	// TargetStatus returns found=false when the target does not exist
	TargetStatus(ctx context.Context, typ models.TargetType, id string) (models.ModerationStatus, bool, error)
	HasPendingReport(ctx context.Context, typ models.TargetType, id, reporterID string) (bool, error)
	CreateReport(ctx context.Context, r *models.Report) error
	CountPendingReports(ctx context.Context, typ models.TargetType, id string) (int64, error)
	// SetReportCount writes count, and status hidden when hide is set, in one update
	SetReportCount(ctx context.Context, typ models.TargetType, id string, count int, hide bool) error
}

// Submission is a single report
type Submission struct {
	TargetType     models.TargetType
	TargetID       string
	ReporterID     string
	ReasonCategory string
	ReasonDetail   string
}

// Result is the target's state after the report
type Result struct {
	ReportCount int  `json:"reportCount"`
	Hidden      bool `json:"hidden"`
}

// Aggregator counts pending reports and applies the auto-hide threshold
type Aggregator struct {
	store          Store
	threshold      int
	dedupeReporter bool
	logger         *zap.Logger
}

// NewAggregator creates an aggregator. dedupeReporter rejects a second
// pending report from the same reporter on the same target.
func NewAggregator(store Store, threshold int, dedupeReporter bool) *Aggregator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Aggregator{
		store:          store,
		threshold:      threshold,
		dedupeReporter: dedupeReporter,
		logger:         logging.WithComponent("report"),
	}
}

func (s Submission) validate() error {
	if !s.TargetType.Valid() {
		return apperr.Validation("invalid_target")
	}
	if s.TargetID == "" {
		if s.TargetType == models.TargetPost {
			return apperr.Validation("post_missing")
		}
		return apperr.Validation("comment_missing")
	}
	if s.ReasonCategory == "" {
		return apperr.Validation("reason_missing")
	}
	if textutil.Graphemes(s.ReasonDetail) > DetailMaxGraphemes {
		return apperr.Validation("reason_detail_too_long")
	}
	return nil
}

// Submit stores a pending report, recounts the target's pending reports and
// hides the target once the count reaches the threshold
func (a *Aggregator) Submit(ctx context.Context, sub Submission) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "report.submit")
	defer span.End()

	sub.ReasonCategory = strings.TrimSpace(sub.ReasonCategory)
	sub.ReasonDetail = strings.TrimSpace(sub.ReasonDetail)
	if err := sub.validate(); err != nil {
		return nil, err
	}

	status, found, err := a.store.TargetStatus(ctx, sub.TargetType, sub.TargetID)
	if err != nil {
		return nil, apperr.Internal("report_failed", err)
	}
	if !found {
		return nil, apperr.NotFound("target_not_found")
	}

	if a.dedupeReporter {
		dup, err := a.store.HasPendingReport(ctx, sub.TargetType, sub.TargetID, sub.ReporterID)
		if err != nil {
			return nil, apperr.Internal("report_failed", err)
		}
		if dup {
			return nil, apperr.Validation("already_reported")
		}
	}

	if err := a.store.CreateReport(ctx, &models.Report{
		ID:           uuid.NewString(),
		TargetType:   sub.TargetType,
		TargetID:     sub.TargetID,
		ReporterID:   sub.ReporterID,
		Reason:       sub.ReasonCategory,
		ReasonDetail: sub.ReasonDetail,
		Status:       models.ReportPending,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		return nil, apperr.Internal("report_failed", err)
	}

	count, err := a.store.CountPendingReports(ctx, sub.TargetType, sub.TargetID)
	if err != nil {
		return nil, apperr.Internal("report_failed", err)
	}

	result := &Result{ReportCount: int(count)}
	if result.ReportCount >= a.threshold && moderation.CanTransition(status, moderation.TriggerReportThreshold) {
		result.Hidden = true
	}

	if err := a.store.SetReportCount(ctx, sub.TargetType, sub.TargetID, result.ReportCount, result.Hidden); err != nil {
		return nil, apperr.Internal("report_failed", err)
	}

	span.SetAttributes(attribute.Int("report_count", result.ReportCount), attribute.Bool("hidden", result.Hidden))
	if result.Hidden {
		a.logger.Info("target hidden by reports",
			zap.String("target_type", string(sub.TargetType)),
			zap.String("target_id", sub.TargetID),
			zap.Int("report_count", result.ReportCount),
		)
	}
	return result, nil
}
