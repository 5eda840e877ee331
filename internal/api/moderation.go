package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/agora-community/agora/internal/apperr"
	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/internal/moderation"
	"github.com/agora-community/agora/internal/report"
)

type targetParams struct {
	TargetType models.TargetType `json:"targetType"`
	TargetID   string            `json:"targetId"`
}

type reviewParams struct {
	targetParams
	MessageID string `json:"messageId"`
}

type queueParams struct {
	TargetType      models.TargetType `json:"targetType"`
	Status          string            `json:"status"`
	ReviewRequested *bool             `json:"reviewRequested"`
	Source          string            `json:"source"`
	Limit           int               `json:"limit"`
}

type decideParams struct {
	targetParams
	Decision moderation.Decision `json:"decision"`
	Reason   string              `json:"reason"`
}

type reportParams struct {
	targetParams
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

type moderationAPI struct {
	moderation ModerationService
	users      UserDirectory
}

// requireModerator fails unless the caller holds a moderator role
func (a *moderationAPI) requireModerator(ctx context.Context, userID string) error {
	user, err := a.users.GetUser(ctx, userID)
	if err != nil {
		return apperr.Internal("user_lookup_failed", fmt.Errorf("get user: %w", err))
	}
	if user == nil || !user.IsModerator() {
		return apperr.Permission("moderator_required")
	}
	return nil
}

func (a *moderationAPI) requestReview(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var in reviewParams
	if err := bindParams(params, &in); err != nil {
		return nil, err
	}
	return a.moderation.RequestReview(c.Request.Context(), moderation.ReviewRequest{
		UserID:    UserID(c),
		Type:      in.TargetType,
		ID:        in.TargetID,
		MessageID: in.MessageID,
	})
}

func (a *moderationAPI) queue(c *gin.Context, params json.RawMessage) (interface{}, error) {
	ctx := c.Request.Context()
	if err := a.requireModerator(ctx, UserID(c)); err != nil {
		return nil, err
	}

	var in queueParams
	if err := bindParams(params, &in); err != nil {
		return nil, err
	}
	items, err := a.moderation.Queue(ctx, moderation.QueueQuery{
		Type:            in.TargetType,
		Status:          in.Status,
		ReviewRequested: in.ReviewRequested,
		Source:          in.Source,
		Limit:           in.Limit,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*moderation.QueueItem{}
	}
	return gin.H{"items": items}, nil
}

func (a *moderationAPI) decide(c *gin.Context, params json.RawMessage) (interface{}, error) {
	ctx := c.Request.Context()
	if err := a.requireModerator(ctx, UserID(c)); err != nil {
		return nil, err
	}

	var in decideParams
	if err := bindParams(params, &in); err != nil {
		return nil, err
	}
	return a.moderation.Decide(ctx, moderation.DecisionRequest{
		ModeratorID: UserID(c),
		Type:        in.TargetType,
		ID:          in.TargetID,
		Decision:    in.Decision,
		Reason:      in.Reason,
	})
}

type reportAPI struct {
	reports ReportService
}

func (a *reportAPI) submit(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var in reportParams
	if err := bindParams(params, &in); err != nil {
		return nil, err
	}
	return a.reports.Submit(c.Request.Context(), report.Submission{
		TargetType:     in.TargetType,
		TargetID:       in.TargetID,
		ReporterID:     UserID(c),
		ReasonCategory: in.Reason,
		ReasonDetail:   in.Detail,
	})
}
