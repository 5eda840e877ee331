package db

import (
	"context"

	"github.com/agora-community/agora/internal/models"
)

// ReportRepository provides report operations
type ReportRepository struct {
	*Repository
}

// NewReportRepository creates a new report repository
func NewReportRepository(repo *Repository) *ReportRepository {
	return &ReportRepository{Repository: repo}
}

// TargetStatus returns the moderation status of a post or comment
func (r *ReportRepository) TargetStatus(ctx context.Context, typ models.TargetType, id string) (models.ModerationStatus, bool, error) {
	model, err := modelFor(typ)
	if err != nil {
		return "", false, err
	}
	var statuses []models.ModerationStatus
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Limit(1).Pluck("moderation_status", &statuses).Error; err != nil {
		return "", false, err
	}
	if len(statuses) == 0 {
		return "", false, nil
	}
	return statuses[0], true, nil
}

// HasPendingReport reports whether the reporter already has a pending report on the target
func (r *ReportRepository) HasPendingReport(ctx context.Context, typ models.TargetType, id, reporterID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("target_type = ? AND target_id = ? AND reporter_id = ? AND status = ?", typ, id, reporterID, models.ReportPending).
		Count(&n).Error
	return n > 0, err
}

// CreateReport creates a new report
func (r *ReportRepository) CreateReport(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// CountPendingReports counts the pending reports on a target
func (r *ReportRepository) CountPendingReports(ctx context.Context, typ models.TargetType, id string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("target_type = ? AND target_id = ? AND status = ?", typ, id, models.ReportPending).
		Count(&n).Error
	return n, err
}

// SetReportCount stores the recounted report_count, hiding the target in the same update when asked
func (r *ReportRepository) SetReportCount(ctx context.Context, typ models.TargetType, id string, count int, hide bool) error {
	model, err := modelFor(typ)
	if err != nil {
		return err
	}
	cols := map[string]interface{}{"report_count": count}
	if hide {
		cols["moderation_status"] = models.StatusHidden
	}
	return r.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(cols).Error
}

// PendingReports returns the pending reports on the given targets, oldest first
func (r *ReportRepository) PendingReports(ctx context.Context, typ models.TargetType, targetIDs []string) ([]*models.Report, error) {
	if len(targetIDs) == 0 {
		return nil, nil
	}
	var reports []*models.Report
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id IN ? AND status = ?", typ, targetIDs, models.ReportPending).
		Order("created_at ASC").
		Find(&reports).Error
	return reports, err
}

// ResolveReports marks reports reviewed
func (r *ReportRepository) ResolveReports(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Report{}).
		Where("id IN ?", ids).
		Update("status", models.ReportReviewed).Error
}
