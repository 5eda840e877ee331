package content

import (
	"context"
	"strings"
	"time"

	"github.com/agora-community/agora/internal/apperr"
)

// FollowAction selects what ToggleFollow does
type FollowAction string

const (
	ActionFollow   FollowAction = "follow"
	ActionUnfollow FollowAction = "unfollow"
)

const followingLimit = 500

// FollowRequest asks to follow or unfollow a user
type FollowRequest struct {
	TargetUserID string       `json:"targetUserId"`
	Action       FollowAction `json:"action"`
}

// FollowResult is the follow state after a toggle
type FollowResult struct {
	Following bool `json:"following"`
}

// FollowedAuthor is one entry of a user's following list
type FollowedAuthor struct {
	Author
	FollowedAt time.Time `json:"followedAt"`
}

// ToggleFollow follows or unfollows another user. Following twice and
// unfollowing someone not followed both succeed.
func (s *Service) ToggleFollow(ctx context.Context, userID string, req FollowRequest) (*FollowResult, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	target := strings.TrimSpace(req.TargetUserID)
	if target == "" {
		return nil, apperr.Validation("target_missing")
	}
	if target == user.ID {
		return nil, apperr.Validation("self_follow")
	}

	switch req.Action {
	case ActionUnfollow:
		if _, err := s.follows.Unfollow(ctx, user.ID, target); err != nil {
			return nil, apperr.Internal("follow_update_failed", err)
		}
		return &FollowResult{Following: false}, nil
	case ActionFollow:
	default:
		return nil, apperr.Validation("invalid_action")
	}

	followed, err := s.users.GetUser(ctx, target)
	if err != nil {
		return nil, apperr.Internal("user_lookup_failed", err)
	}
	if followed == nil {
		return nil, apperr.NotFound("user_not_found")
	}
	if err := s.follows.Follow(ctx, user.ID, followed.ID); err != nil {
		return nil, apperr.Internal("follow_update_failed", err)
	}
	return &FollowResult{Following: true}, nil
}

// ListFollowing returns the users userID follows, most recently followed first
func (s *Service) ListFollowing(ctx context.Context, userID string) ([]FollowedAuthor, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	follows, err := s.follows.ListFollowing(ctx, user.ID, followingLimit)
	if err != nil {
		return nil, apperr.Internal("follow_list_failed", err)
	}
	out := make([]FollowedAuthor, 0, len(follows))
	for _, f := range follows {
		out = append(out, FollowedAuthor{Author: authorOf(f.FollowedID, f.Followed), FollowedAt: f.CreatedAt})
	}
	return out, nil
}
