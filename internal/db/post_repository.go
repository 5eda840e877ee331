package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/agora-community/agora/internal/content"
	"github.com/agora-community/agora/internal/hotscore"
	"github.com/agora-community/agora/internal/models"
)

// PostRepository provides post, like and view operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// CreatePost inserts a post together with its classify task
func (r *PostRepository) CreatePost(ctx context.Context, post *models.Post, task *models.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author").Create(post).Error; err != nil {
			return err
		}
		if task != nil {
			return tx.Create(task).Error
		}
		return nil
	})
}

// GetPost retrieves a post with its author
func (r *PostRepository) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// ListActivePosts returns a page of active posts, most recently edited first.
// search matches title, body, tags or the author's name case-insensitively.
func (r *PostRepository) ListActivePosts(ctx context.Context, search string, limit, offset int) ([]*models.Post, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Where("moderation_status = ?", models.StatusActive)
		if term := strings.TrimSpace(search); term != "" {
			pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
			db = db.Where("(LOWER(title) LIKE @p ESCAPE '\\' OR LOWER(body) LIKE @p ESCAPE '\\'"+
				" OR LOWER(CAST(tags AS TEXT)) LIKE @p ESCAPE '\\'"+
				" OR author_id IN (SELECT id FROM users WHERE LOWER(name) LIKE @p ESCAPE '\\'))",
				sql.Named("p", pattern))
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []*models.Post
	if err := r.db.WithContext(ctx).Scopes(filter).
		Preload("Author").
		Order("edited_at DESC").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// ListAuthorPosts returns the author's posts except hidden ones, most recently edited first
func (r *PostRepository) ListAuthorPosts(ctx context.Context, authorID string, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("author_id = ? AND moderation_status <> ?", authorID, models.StatusHidden).
		Order("edited_at DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// EditPost rewrites the author-editable columns while the post is still in
// status expected. Re-moderation clears review state and inserts task.
func (r *PostRepository) EditPost(ctx context.Context, id string, expected models.ModerationStatus, edit content.PostEdit, task *models.Task) (bool, error) {
	columns := []string{"title", "body", "tags", "cover", "edited_at"}
	values := models.Post{
		Title:    edit.Title,
		Body:     edit.Body,
		Tags:     edit.Tags,
		Cover:    edit.Cover,
		EditedAt: edit.EditedAt.UTC(),
	}
	if edit.Remoderate {
		columns = append(columns, "moderation_status", "review_requested", "ai_reason")
		values.ModerationStatus = models.StatusPendingAI
	}

	var updated bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ? AND moderation_status = ?", id, expected).
			Select(columns).
			Updates(&values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		updated = true
		if task != nil {
			return tx.Create(task).Error
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

// SetPostStatus moves a post from expected to next
func (r *PostRepository) SetPostStatus(ctx context.Context, id string, expected, next models.ModerationStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND moderation_status = ?", id, expected).
		Update("moderation_status", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementViewCount adds one view
func (r *PostRepository) IncrementViewCount(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// ToggleLike removes or adds the user's like and stores the recounted total
func (r *PostRepository) ToggleLike(ctx context.Context, userID, postID string) (bool, int, error) {
	var (
		liked bool
		count int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key := models.LikeKey(userID, postID)
		res := tx.Where("like_key = ?", key).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			liked = true
			like := &models.Like{LikeKey: key, UserID: userID, PostID: postID, CreatedAt: time.Now().UTC()}
			if err := tx.Create(like).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumn("like_count", count).Error
	})
	if err != nil {
		return false, 0, err
	}
	return liked, int(count), nil
}

// LikedPostIDs returns which of postIDs the user has liked
func (r *PostRepository) LikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool)
	if len(postIDs) == 0 {
		return liked, nil
	}
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

// ReportedTargetIDs returns which of ids the reporter has reported
func (r *PostRepository) ReportedTargetIDs(ctx context.Context, reporterID string, typ models.TargetType, ids []string) (map[string]bool, error) {
	reported := make(map[string]bool)
	if len(ids) == 0 {
		return reported, nil
	}
	var found []string
	if err := r.db.WithContext(ctx).Model(&models.Report{}).
		Distinct("target_id").
		Where("reporter_id = ? AND target_type = ? AND target_id IN ?", reporterID, typ, ids).
		Pluck("target_id", &found).Error; err != nil {
		return nil, err
	}
	for _, id := range found {
		reported[id] = true
	}
	return reported, nil
}

// ActivePostsSince returns active posts created at or after since, newest first
func (r *PostRepository) ActivePostsSince(ctx context.Context, since time.Time, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Select("id", "like_count", "comment_count", "view_count", "created_at").
		Where("moderation_status = ? AND created_at >= ?", models.StatusActive, since.UTC()).
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// UpdateHotScores writes every score in one transaction
func (r *PostRepository) UpdateHotScores(ctx context.Context, scores map[string]float64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, score := range scores {
			if err := tx.Model(&models.Post{}).Where("id = ?", id).UpdateColumn("hot_score", score).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// TopHotScores returns active posts by hot score, highest first
func (r *PostRepository) TopHotScores(ctx context.Context, limit int) ([]hotscore.Scored, error) {
	var ranked []hotscore.Scored
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("id, hot_score AS score").
		Where("moderation_status = ?", models.StatusActive).
		Order("hot_score DESC").
		Limit(limit).
		Scan(&ranked).Error
	return ranked, err
}

// CommentRepository provides comment operations
type CommentRepository struct {
	*Repository
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(repo *Repository) *CommentRepository {
	return &CommentRepository{Repository: repo}
}

// CreateComment inserts a comment together with its classify task
func (r *CommentRepository) CreateComment(ctx context.Context, comment *models.Comment, task *models.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author", "Post").Create(comment).Error; err != nil {
			return err
		}
		if task != nil {
			return tx.Create(task).Error
		}
		return nil
	})
}

// ListActiveComments returns a post's active comments, oldest first
func (r *CommentRepository) ListActiveComments(ctx context.Context, postID string) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).Preload("Author").
		Where("post_id = ? AND moderation_status = ?", postID, models.StatusActive).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}
