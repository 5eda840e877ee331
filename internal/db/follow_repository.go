package db

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/agora-community/agora/internal/models"
)

// FollowRepository provides follow graph operations
type FollowRepository struct {
	*Repository
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(repo *Repository) *FollowRepository {
	return &FollowRepository{Repository: repo}
}

// Follow stores the edge. An existing edge keeps its original time.
func (r *FollowRepository) Follow(ctx context.Context, followerID, followedID string) error {
	follow := &models.Follow{FollowerID: followerID, FollowedID: followedID, CreatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit("Followed").
		Create(follow).Error
}

// Unfollow deletes the edge and reports whether it existed
func (r *FollowRepository) Unfollow(ctx context.Context, followerID, followedID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListFollowing returns who followerID follows, most recent first
func (r *FollowRepository) ListFollowing(ctx context.Context, followerID string, limit int) ([]*models.Follow, error) {
	var follows []*models.Follow
	err := r.db.WithContext(ctx).
		Preload("Followed").
		Where("follower_id = ?", followerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&follows).Error
	return follows, err
}

// FollowedIDs returns which of userIDs followerID follows
func (r *FollowRepository) FollowedIDs(ctx context.Context, followerID string, userIDs []string) (map[string]bool, error) {
	followed := make(map[string]bool)
	if followerID == "" || len(userIDs) == 0 {
		return followed, nil
	}
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id IN ?", followerID, userIDs).
		Pluck("followed_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		followed[id] = true
	}
	return followed, nil
}
