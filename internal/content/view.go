package content

import (
	"time"

	"github.com/agora-community/agora/internal/models"
)

// Author is the public part of a user
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Moderation is a record's moderation state as shown to its author
type Moderation struct {
	Status          models.ModerationStatus `json:"status"`
	AIReason        string                  `json:"aiReason,omitempty"`
	ReviewRequested bool                    `json:"reviewRequested"`
}

// PostView is a post as returned to clients
type PostView struct {
	ID               string      `json:"id"`
	Author           Author      `json:"author"`
	Title            string      `json:"title"`
	Body             string      `json:"body"`
	Tags             []string    `json:"tags"`
	Cover            string      `json:"cover,omitempty"`
	LikeCount        int         `json:"likeCount"`
	CommentCount     int         `json:"commentCount"`
	ViewCount        int         `json:"viewCount"`
	CreatedAt        time.Time   `json:"createdAt"`
	EditedAt         time.Time   `json:"editedAt"`
	Moderation       *Moderation `json:"moderation,omitempty"`
	LikedByViewer    bool        `json:"likedByViewer"`
	ReportedByViewer bool        `json:"reportedByViewer"`
	IsHot            bool        `json:"isHot"`

	AuthorFollowedByViewer bool `json:"authorFollowedByViewer"`
}

// CommentView is a comment as returned to clients
type CommentView struct {
	ID               string      `json:"id"`
	PostID           string      `json:"postId"`
	Author           Author      `json:"author"`
	Body             string      `json:"body"`
	CreatedAt        time.Time   `json:"createdAt"`
	Moderation       *Moderation `json:"moderation,omitempty"`
	ReportedByViewer bool        `json:"reportedByViewer"`
}

// PostDetail is a post with its visible comments
type PostDetail struct {
	PostView
	Comments []CommentView `json:"comments"`
}

// PostPage is one page of the post listing
type PostPage struct {
	Items      []PostView `json:"items"`
	Page       int        `json:"page"`
	PerPage    int        `json:"perPage"`
	TotalItems int64      `json:"totalItems"`
}

// LikeResult is the outcome of a like toggle
type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

func authorOf(id string, u *models.User) Author {
	a := Author{ID: id}
	if u != nil {
		a.Name = u.Name
	}
	return a
}

func postView(p *models.Post) PostView {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return PostView{
		ID:           p.ID,
		Author:       authorOf(p.AuthorID, p.Author),
		Title:        p.Title,
		Body:         p.Body,
		Tags:         tags,
		Cover:        p.Cover,
		LikeCount:    p.LikeCount,
		CommentCount: p.CommentCount,
		ViewCount:    p.ViewCount,
		CreatedAt:    p.CreatedAt,
		EditedAt:     p.EditedAt,
	}
}

func commentView(c *models.Comment) CommentView {
	return CommentView{
		ID:        c.ID,
		PostID:    c.PostID,
		Author:    authorOf(c.AuthorID, c.Author),
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}

func moderationOf(status models.ModerationStatus, reason string, reviewRequested bool) *Moderation {
	return &Moderation{Status: status, AIReason: reason, ReviewRequested: reviewRequested}
}
