package content

import (
	"context"

	"go.uber.org/zap"

	"github.com/agora-community/agora/internal/apperr"
	"github.com/agora-community/agora/internal/models"
)

// UserStore reads users and settles invite codes
type UserStore interface {
	// GetUser returns nil, nil when the user does not exist
	GetUser(ctx context.Context, id string) (*models.User, error)
	// GetEnabledInvite returns nil, nil when no enabled invite has the code
	GetEnabledInvite(ctx context.Context, code string) (*models.Invite, error)
	// ClaimInvite marks the invite used by userID unless someone else already holds it
	ClaimInvite(ctx context.Context, inviteID, userID string) (bool, error)
	// RestorePosting sets can_post while reject_count stays below limit
	RestorePosting(ctx context.Context, userID string, limit int) error
}

// Gate decides whether a user may submit content
type Gate struct {
	users          UserStore
	inviteRequired bool
	rejectLimit    int
	logger         *zap.Logger
}

// NewGate creates a gate. rejectLimit is the reject count at which posting is suspended.
func NewGate(users UserStore, inviteRequired bool, rejectLimit int, logger *zap.Logger) *Gate {
	return &Gate{users: users, inviteRequired: inviteRequired, rejectLimit: rejectLimit, logger: logger}
}

// CheckPost runs the permission and invite checks for a new post
func (g *Gate) CheckPost(ctx context.Context, user *models.User) error {
	if !user.CanPost && user.RejectCount >= g.rejectLimit {
		return apperr.Permission("can_post_disabled")
	}
	if g.inviteRequired || !user.CanPost {
		return g.verifyInvite(ctx, user)
	}
	return nil
}

// CheckComment runs the invite check when invites are required, then the
// posting permission.
func (g *Gate) CheckComment(ctx context.Context, user *models.User) error {
	if g.inviteRequired {
		if err := g.verifyInvite(ctx, user); err != nil {
			return err
		}
	}
	if !user.CanPost {
		return apperr.Permission("can_post_disabled")
	}
	return nil
}

// verifyInvite accepts the user's invite code when it is enabled and not held
// by someone else. An unused invite is claimed. A suspended user under the
// reject limit gets posting back.
func (g *Gate) verifyInvite(ctx context.Context, user *models.User) error {
	if user.InviteCode == "" {
		return apperr.Permission("invite_required")
	}

	invite, err := g.users.GetEnabledInvite(ctx, user.InviteCode)
	if err != nil {
		return apperr.Internal("invite_lookup_failed", err)
	}
	if invite == nil {
		return apperr.Permission("invite_invalid")
	}

	if invite.UsedBy == nil {
		claimed, err := g.users.ClaimInvite(ctx, invite.ID, user.ID)
		if err != nil {
			return apperr.Internal("invite_claim_failed", err)
		}
		if !claimed {
			return apperr.Permission("invite_in_use")
		}
	} else if *invite.UsedBy != user.ID {
		return apperr.Permission("invite_in_use")
	}

	if !user.CanPost && user.RejectCount < g.rejectLimit {
		if err := g.users.RestorePosting(ctx, user.ID, g.rejectLimit); err != nil {
			g.logger.Error("failed to restore posting after invite", zap.String("user_id", user.ID), zap.Error(err))
		} else {
			user.CanPost = true
		}
	}
	return nil
}
