package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/agora-community/agora/internal/apperr"
	"github.com/agora-community/agora/pkg/config"
)

// Reasons reported when a user action is refused
const (
	ReasonPostCooldown    = "post_cooldown"
	ReasonPostHourlyLimit = "post_hourly_limit"
	ReasonPostDailyLimit  = "post_daily_limit"
	ReasonCommentCooldown = "comment_cooldown"
)

// ActivityStore reads a user's recent submissions
type ActivityStore interface {
	// LatestPostTime returns the creation time of the user's newest post.
	LatestPostTime(ctx context.Context, userID string) (time.Time, bool, error)
	// LatestCommentTime returns the creation time of the user's newest comment.
	LatestCommentTime(ctx context.Context, userID string) (time.Time, bool, error)
	// PostTimesSince returns up to limit creation times at or after since, newest first.
	PostTimesSince(ctx context.Context, userID string, since time.Time, limit int) ([]time.Time, error)
}

// Decision is the outcome of a user-action check
type Decision struct {
	Allowed           bool
	Reason            string
	Message           string
	RetryAfterSeconds int
}

// Err converts a refusal into a rate-limited application error
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.RateLimited(d.Reason, d.Message, d.RetryAfterSeconds)
}

var allowed = Decision{Allowed: true}

// UserLimiter enforces per-user cooldowns and caps against the datastore
type UserLimiter struct {
	store ActivityStore
	cfg   config.RateLimitConfig
	now   func() time.Time
}

// NewUserLimiter creates a limiter over store
func NewUserLimiter(store ActivityStore, cfg config.RateLimitConfig) *UserLimiter {
	return &UserLimiter{store: store, cfg: cfg, now: time.Now}
}

// CheckPostLimits applies the post cooldown, then the hourly and daily caps.
func (l *UserLimiter) CheckPostLimits(ctx context.Context, userID string) (Decision, error) {
	now := l.now()

	if l.cfg.PostCooldown > 0 {
		last, ok, err := l.store.LatestPostTime(ctx, userID)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to read latest post: %w", err)
		}
		if ok {
			if elapsed := now.Sub(last); elapsed < l.cfg.PostCooldown {
				return Decision{
					Reason:            ReasonPostCooldown,
					Message:           "发帖太快了，请休息一下",
					RetryAfterSeconds: retryAfter(l.cfg.PostCooldown - elapsed),
				}, nil
			}
		}
	}

	if d, err := l.checkCap(ctx, userID, now, time.Hour, l.cfg.HourlyPostCap, ReasonPostHourlyLimit,
		fmt.Sprintf("每小时最多发布 %d 篇帖子", l.cfg.HourlyPostCap)); err != nil || !d.Allowed {
		return d, err
	}

	return l.checkCap(ctx, userID, now, 24*time.Hour, l.cfg.DailyPostCap, ReasonPostDailyLimit,
		fmt.Sprintf("每天最多发布 %d 篇帖子", l.cfg.DailyPostCap))
}

// CheckCommentLimits applies the comment cooldown.
func (l *UserLimiter) CheckCommentLimits(ctx context.Context, userID string) (Decision, error) {
	if l.cfg.CommentCooldown <= 0 {
		return allowed, nil
	}

	last, ok, err := l.store.LatestCommentTime(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read latest comment: %w", err)
	}
	if ok {
		if elapsed := l.now().Sub(last); elapsed < l.cfg.CommentCooldown {
			return Decision{
				Reason:            ReasonCommentCooldown,
				Message:           "评论太快了，请休息一下",
				RetryAfterSeconds: retryAfter(l.cfg.CommentCooldown - elapsed),
			}, nil
		}
	}
	return allowed, nil
}

// checkCap refuses when the window already holds limit posts. The retry hint
// is when the oldest post in the window ages out.
func (l *UserLimiter) checkCap(ctx context.Context, userID string, now time.Time, window time.Duration, limit int, reason, message string) (Decision, error) {
	if limit <= 0 {
		return allowed, nil
	}

	times, err := l.store.PostTimesSince(ctx, userID, now.Add(-window), limit)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count recent posts: %w", err)
	}
	if len(times) < limit {
		return allowed, nil
	}

	oldest := times[0]
	for _, t := range times[1:] {
		if t.Before(oldest) {
			oldest = t
		}
	}
	return Decision{
		Reason:            reason,
		Message:           message,
		RetryAfterSeconds: retryAfter(oldest.Add(window).Sub(now)),
	}, nil
}

func retryAfter(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
