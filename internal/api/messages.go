package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/agora-community/agora/internal/models"
)

type messageAPI struct {
	inbox InboxService
}

type pageParams struct {
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
}

type markParams struct {
	ID     string                    `json:"id"`
	Status models.NotificationStatus `json:"status"`
}

func (a *messageAPI) list(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var in pageParams
	if err := bindParams(params, &in); err != nil {
		return nil, err
	}
	page, err := a.inbox.List(c.Request.Context(), UserID(c), in.Page, in.PerPage)
	if err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []*models.Notification{}
	}
	return page, nil
}

// markRead sets a message to read unless another status is given
func (a *messageAPI) markRead(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var in markParams
	if err := bindParams(params, &in); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = models.NotificationRead
	}
	if err := a.inbox.SetStatus(c.Request.Context(), UserID(c), in.ID, in.Status); err != nil {
		return nil, err
	}
	return gin.H{"id": in.ID, "status": in.Status}, nil
}
