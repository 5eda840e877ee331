package content

import (
	"context"
	"time"

	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/internal/notify"
	"github.com/agora-community/agora/internal/ratelimit"
)

// PostEdit is the set of post columns an author edit rewrites
type PostEdit struct {
	Title    string
	Body     string
	Tags     []string
	Cover    string
	EditedAt time.Time
	// Remoderate puts the post back into pending_ai with review state cleared
	Remoderate bool
}

// PostStore persists posts, likes and view counts
type PostStore interface {
	// CreatePost inserts the post and its classify task in one transaction
	CreatePost(ctx context.Context, post *models.Post, task *models.Task) error
	// GetPost returns the post with its author, or nil, nil
	GetPost(ctx context.Context, id string) (*models.Post, error)
	// ListActivePosts returns active posts, most recently edited first
	ListActivePosts(ctx context.Context, search string, limit, offset int) ([]*models.Post, int64, error)
	// ListAuthorPosts returns the author's posts in any status but hidden,
	// most recently edited first
	ListAuthorPosts(ctx context.Context, authorID string, limit int) ([]*models.Post, error)
	// EditPost applies edit while the post is still in status expected. A
	// non-nil task is inserted in the same transaction.
	EditPost(ctx context.Context, id string, expected models.ModerationStatus, edit PostEdit, task *models.Task) (bool, error)
	// SetPostStatus moves the post from expected to next
	SetPostStatus(ctx context.Context, id string, expected, next models.ModerationStatus) (bool, error)
	IncrementViewCount(ctx context.Context, id string) error
	// ToggleLike removes the user's like if present, otherwise adds one, and
	// stores the recounted like_count
	ToggleLike(ctx context.Context, userID, postID string) (liked bool, likeCount int, err error)
	LikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
	ReportedTargetIDs(ctx context.Context, reporterID string, typ models.TargetType, ids []string) (map[string]bool, error)
}

// CommentStore persists comments
type CommentStore interface {
	// CreateComment inserts the comment and its classify task in one transaction
	CreateComment(ctx context.Context, comment *models.Comment, task *models.Task) error
	// ListActiveComments returns a post's active comments, oldest first
	ListActiveComments(ctx context.Context, postID string) ([]*models.Comment, error)
}

// FollowStore persists follow edges between users
type FollowStore interface {
	// Follow adds the edge; following twice is not an error
	Follow(ctx context.Context, followerID, followedID string) error
	// Unfollow removes the edge and reports whether it existed
	Unfollow(ctx context.Context, followerID, followedID string) (bool, error)
	// ListFollowing returns the follower's edges with the followed user, newest first
	ListFollowing(ctx context.Context, followerID string, limit int) ([]*models.Follow, error)
	FollowedIDs(ctx context.Context, followerID string, userIDs []string) (map[string]bool, error)
}

// Limiter enforces per-user submission limits
type Limiter interface {
	CheckPostLimits(ctx context.Context, userID string) (ratelimit.Decision, error)
	CheckCommentLimits(ctx context.Context, userID string) (ratelimit.Decision, error)
}

// Notifier emits best-effort notifications
type Notifier interface {
	Emit(ctx context.Context, msg notify.Message)
}

// HotSet reports which posts are currently hot
type HotSet interface {
	HotIDs(ctx context.Context) (map[string]bool, error)
}

// Waker is told when a task was enqueued
type Waker interface {
	Notify()
}
