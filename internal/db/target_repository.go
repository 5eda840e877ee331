package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/internal/moderation"
)

// TargetRepository exposes posts and comments to the moderation pipeline
type TargetRepository struct {
	*Repository
}

// NewTargetRepository creates a new target repository
func NewTargetRepository(repo *Repository) *TargetRepository {
	return &TargetRepository{Repository: repo}
}

func modelFor(typ models.TargetType) (interface{}, error) {
	switch typ {
	case models.TargetPost:
		return &models.Post{}, nil
	case models.TargetComment:
		return &models.Comment{}, nil
	default:
		return nil, fmt.Errorf("unknown target type %q", typ)
	}
}

func postTarget(p *models.Post) *moderation.Target {
	t := &moderation.Target{
		Type:            models.TargetPost,
		ID:              p.ID,
		AuthorID:        p.AuthorID,
		Title:           p.Title,
		Body:            p.Body,
		Status:          p.ModerationStatus,
		AIReason:        p.AIReason,
		ReviewRequested: p.ReviewRequested,
		ReportCount:     p.ReportCount,
		CreatedAt:       p.CreatedAt,
	}
	if p.Cover != "" {
		t.Images = []string{p.Cover}
	}
	return t
}

func commentTarget(c *models.Comment) *moderation.Target {
	t := &moderation.Target{
		Type:            models.TargetComment,
		ID:              c.ID,
		AuthorID:        c.AuthorID,
		PostID:          c.PostID,
		Body:            c.Body,
		Status:          c.ModerationStatus,
		AIReason:        c.AIReason,
		ReviewRequested: c.ReviewRequested,
		ReportCount:     c.ReportCount,
		CreatedAt:       c.CreatedAt,
	}
	if c.Post != nil {
		t.PostAuthorID = c.Post.AuthorID
		t.PostTitle = c.Post.Title
	}
	return t
}

// GetTarget loads a post or comment
func (r *TargetRepository) GetTarget(ctx context.Context, typ models.TargetType, id string) (*moderation.Target, error) {
	switch typ {
	case models.TargetPost:
		var post models.Post
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return postTarget(&post), nil
	case models.TargetComment:
		var comment models.Comment
		if err := r.db.WithContext(ctx).Preload("Post").Where("id = ?", id).First(&comment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return commentTarget(&comment), nil
	default:
		return nil, fmt.Errorf("unknown target type %q", typ)
	}
}

func patchColumns(p moderation.Patch) map[string]interface{} {
	cols := make(map[string]interface{}, 4)
	if p.Status != nil {
		cols["moderation_status"] = *p.Status
	}
	if p.AIReason != nil {
		cols["ai_reason"] = *p.AIReason
	}
	if p.ReviewRequested != nil {
		cols["review_requested"] = *p.ReviewRequested
	}
	if p.ReportCount != nil {
		cols["report_count"] = *p.ReportCount
	}
	return cols
}

// UpdateTarget applies a moderation patch
func (r *TargetRepository) UpdateTarget(ctx context.Context, typ models.TargetType, id string, patch moderation.Patch) error {
	_, err := r.update(ctx, typ, patch, "id = ?", id)
	return err
}

// UpdateTargetIf applies a moderation patch only while the record is in status expected
func (r *TargetRepository) UpdateTargetIf(ctx context.Context, typ models.TargetType, id string, expected models.ModerationStatus, patch moderation.Patch) (bool, error) {
	return r.update(ctx, typ, patch, "id = ? AND moderation_status = ?", id, expected)
}

func (r *TargetRepository) update(ctx context.Context, typ models.TargetType, patch moderation.Patch, query string, args ...interface{}) (bool, error) {
	model, err := modelFor(typ)
	if err != nil {
		return false, err
	}
	cols := patchColumns(patch)
	if len(cols) == 0 {
		return true, nil
	}
	res := r.db.WithContext(ctx).Model(model).Where(query, args...).Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IncrementCommentCount adds one to a post's comment_count
func (r *TargetRepository) IncrementCommentCount(ctx context.Context, postID string) error {
	return r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error
}

// ListTargets returns records matching filter, newest first
func (r *TargetRepository) ListTargets(ctx context.Context, typ models.TargetType, filter moderation.Filter, limit int) ([]*moderation.Target, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Status != nil {
			db = db.Where("moderation_status = ?", *filter.Status)
		}
		if filter.ReviewRequested != nil {
			db = db.Where("review_requested = ?", *filter.ReviewRequested)
		}
		if filter.Reported {
			pending := r.db.Model(&models.Report{}).Select("target_id").
				Where("target_type = ? AND status = ?", typ, models.ReportPending)
			db = db.Where("id IN (?)", pending)
		}
		return db.Order("created_at DESC").Limit(limit)
	}

	switch typ {
	case models.TargetPost:
		var posts []*models.Post
		if err := r.db.WithContext(ctx).Scopes(scope).Find(&posts).Error; err != nil {
			return nil, err
		}
		targets := make([]*moderation.Target, len(posts))
		for i, p := range posts {
			targets[i] = postTarget(p)
		}
		return targets, nil
	case models.TargetComment:
		var comments []*models.Comment
		if err := r.db.WithContext(ctx).Preload("Post").Scopes(scope).Find(&comments).Error; err != nil {
			return nil, err
		}
		targets := make([]*moderation.Target, len(comments))
		for i, c := range comments {
			targets[i] = commentTarget(c)
		}
		return targets, nil
	default:
		return nil, fmt.Errorf("unknown target type %q", typ)
	}
}
