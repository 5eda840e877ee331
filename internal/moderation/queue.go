package moderation

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agora-community/agora/internal/apperr"
	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/pkg/telemetry"
)

const (
	defaultQueueLimit = 50
	maxQueueLimit     = 200
)

// Queue sources
const (
	SourceAll      = "all"
	SourceReview   = "review"
	SourceReported = "reported"
)

// QueueQuery selects the moderation queue. An empty Type means both kinds,
// Status "all" disables the status filter and defaults to pending_review.
type QueueQuery struct {
	Type            models.TargetType
	Status          string
	ReviewRequested *bool
	Source          string
	Limit           int
}

// ReportEntry is a pending report attached to a queue item
type ReportEntry struct {
	Reason    string    `json:"reason"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// QueueItem is a record awaiting a moderator
type QueueItem struct {
	*Target
	Reports []ReportEntry `json:"reports,omitempty"`
}

func (q *QueueQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = defaultQueueLimit
	}
	if q.Limit > maxQueueLimit {
		q.Limit = maxQueueLimit
	}
	if q.Status == "" || (q.Status != "all" && !models.ModerationStatus(q.Status).Valid()) {
		q.Status = string(models.StatusPendingReview)
	}
	if q.Source != SourceReview && q.Source != SourceReported {
		q.Source = SourceAll
	}
	if !q.Type.Valid() {
		q.Type = ""
	}
}

// Queue lists records awaiting review and records with pending reports,
// newest first, each with its pending reports
func (s *Service) Queue(ctx context.Context, q QueueQuery) ([]*QueueItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "moderation.queue")
	defer span.End()

	q.normalize()

	reviewFilter := Filter{ReviewRequested: q.ReviewRequested}
	if q.Status != "all" {
		reviewFilter.Status = statusPtr(models.ModerationStatus(q.Status))
	}
	reportedFilter := Filter{Reported: true}

	types := []models.TargetType{models.TargetPost, models.TargetComment}
	if q.Type != "" {
		types = []models.TargetType{q.Type}
	}

	seen := make(map[string]bool)
	var targets []*Target
	for _, typ := range types {
		var filters []Filter
		if q.Source != SourceReported {
			filters = append(filters, reviewFilter)
		}
		if q.Source != SourceReview {
			filters = append(filters, reportedFilter)
		}
		for _, f := range filters {
			found, err := s.targets.ListTargets(ctx, typ, f, q.Limit)
			if err != nil {
				return nil, apperr.Internal("queue_failed", err)
			}
			for _, t := range found {
				key := string(t.Type) + "_" + t.ID
				if seen[key] {
					continue
				}
				seen[key] = true
				targets = append(targets, t)
			}
		}
	}

	byType := map[models.TargetType][]string{}
	for _, t := range targets {
		byType[t.Type] = append(byType[t.Type], t.ID)
	}
	reports := map[string][]ReportEntry{}
	for typ, ids := range byType {
		pending, err := s.reports.PendingReports(ctx, typ, ids)
		if err != nil {
			s.logger.Error("queue report lookup failed", zap.String("target_type", string(typ)), zap.Error(err))
			continue
		}
		for _, r := range pending {
			key := string(typ) + "_" + r.TargetID
			reports[key] = append(reports[key], reportEntry(r))
		}
	}

	items := make([]*QueueItem, 0, len(targets))
	for _, t := range targets {
		entries := reports[string(t.Type)+"_"+t.ID]
		t.ReportCount = len(entries)
		items = append(items, &QueueItem{Target: t, Reports: entries})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

// reportEntry splits legacy "category：detail" reasons when no detail was stored
func reportEntry(r *models.Report) ReportEntry {
	reason := r.Reason
	detail := r.ReasonDetail
	if detail == "" {
		idx := strings.Index(reason, "：")
		sepLen := len("：")
		if idx == -1 {
			idx = strings.Index(reason, ":")
			sepLen = 1
		}
		if idx > 0 {
			detail = strings.TrimSpace(reason[idx+sepLen:])
			reason = strings.TrimSpace(reason[:idx])
		}
	}
	if reason == "" {
		reason = "其他"
	}
	return ReportEntry{Reason: reason, Detail: detail, CreatedAt: r.CreatedAt}
}
