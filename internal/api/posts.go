package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/agora-community/agora/internal/apperr"
	"github.com/agora-community/agora/internal/content"
)

type postAPI struct {
	content ContentService
}

type postRef struct {
	ID string `json:"id"`
}

func (p postRef) validate() error {
	if p.ID == "" {
		return apperr.Validation("post_id_missing")
	}
	return nil
}

type postUpdate struct {
	ID string `json:"id"`
	content.PostInput
}

type commentParams struct {
	PostID string `json:"postId"`
	Body   string `json:"body"`
}

func (a *postAPI) list(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var q content.ListQuery
	if err := bindParams(params, &q); err != nil {
		return nil, err
	}
	return a.content.ListPosts(c.Request.Context(), UserID(c), q)
}

func (a *postAPI) get(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var ref postRef
	if err := bindParams(params, &ref); err != nil {
		return nil, err
	}
	if err := ref.validate(); err != nil {
		return nil, err
	}
	return a.content.GetPost(c.Request.Context(), UserID(c), ref.ID)
}

func (a *postAPI) create(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var in content.PostInput
	if err := bindParams(params, &in); err != nil {
		return nil, err
	}
	return a.content.CreatePost(c.Request.Context(), UserID(c), in)
}

func (a *postAPI) update(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var in postUpdate
	if err := bindParams(params, &in); err != nil {
		return nil, err
	}
	if err := (postRef{ID: in.ID}).validate(); err != nil {
		return nil, err
	}
	return a.content.UpdatePost(c.Request.Context(), UserID(c), in.ID, in.PostInput)
}

func (a *postAPI) remove(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var ref postRef
	if err := bindParams(params, &ref); err != nil {
		return nil, err
	}
	if err := ref.validate(); err != nil {
		return nil, err
	}
	if err := a.content.DeletePost(c.Request.Context(), UserID(c), ref.ID); err != nil {
		return nil, err
	}
	return gin.H{"id": ref.ID, "deleted": true}, nil
}

func (a *postAPI) like(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var ref postRef
	if err := bindParams(params, &ref); err != nil {
		return nil, err
	}
	if err := ref.validate(); err != nil {
		return nil, err
	}
	return a.content.ToggleLike(c.Request.Context(), UserID(c), ref.ID)
}

func (a *postAPI) listComments(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var in commentParams
	if err := bindParams(params, &in); err != nil {
		return nil, err
	}
	if in.PostID == "" {
		return nil, apperr.Validation("post_id_missing")
	}
	comments, err := a.content.ListComments(c.Request.Context(), UserID(c), in.PostID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []content.CommentView{}
	}
	return gin.H{"items": comments}, nil
}

func (a *postAPI) createComment(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var in commentParams
	if err := bindParams(params, &in); err != nil {
		return nil, err
	}
	if in.PostID == "" {
		return nil, apperr.Validation("post_id_missing")
	}
	return a.content.CreateComment(c.Request.Context(), UserID(c), in.PostID, in.Body)
}

func (a *postAPI) mine(c *gin.Context, _ json.RawMessage) (interface{}, error) {
	posts, err := a.content.ListMyPosts(c.Request.Context(), UserID(c))
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []content.PostView{}
	}
	return gin.H{"items": posts}, nil
}

func (a *postAPI) toggleFollow(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var req content.FollowRequest
	if err := bindParams(params, &req); err != nil {
		return nil, err
	}
	return a.content.ToggleFollow(c.Request.Context(), UserID(c), req)
}

func (a *postAPI) listFollowing(c *gin.Context, _ json.RawMessage) (interface{}, error) {
	following, err := a.content.ListFollowing(c.Request.Context(), UserID(c))
	if err != nil {
		return nil, err
	}
	if following == nil {
		following = []content.FollowedAuthor{}
	}
	return gin.H{"items": following}, nil
}
