// Package content handles author-facing submissions: posts, comments, likes
// and views, behind validation, permission and rate-limit gates.
package content

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/agora-community/agora/internal/apperr"
	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/internal/moderation"
	"github.com/agora-community/agora/internal/notify"
	"github.com/agora-community/agora/internal/outbox"
	"github.com/agora-community/agora/pkg/logging"
	"github.com/agora-community/agora/pkg/telemetry"
)

const myPostsLimit = 200

// Options configures the submission gates
type Options struct {
	InviteRequired bool
	RejectLimit    int
}

// Service implements post and comment submission
type Service struct {
	users    UserStore
	posts    PostStore
	comments CommentStore
	follows  FollowStore
	gate     *Gate
	limiter  Limiter
	notifier Notifier
	hot      HotSet
	waker    Waker
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a content service. hot and waker may be nil.
func NewService(users UserStore, posts PostStore, comments CommentStore, follows FollowStore, limiter Limiter, notifier Notifier, hot HotSet, waker Waker, opts Options) *Service {
	logger := logging.WithComponent("content")
	if opts.RejectLimit <= 0 {
		opts.RejectLimit = 3
	}
	return &Service{
		users:    users,
		posts:    posts,
		comments: comments,
		follows:  follows,
		gate:     NewGate(users, opts.InviteRequired, opts.RejectLimit, logger),
		limiter:  limiter,
		notifier: notifier,
		hot:      hot,
		waker:    waker,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

func (s *Service) loadUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, apperr.Permission("unauthorized")
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("user_lookup_failed", err)
	}
	if user == nil {
		return nil, apperr.Permission("unauthorized")
	}
	return user, nil
}

func (s *Service) wake() {
	if s.waker != nil {
		s.waker.Notify()
	}
}

// canSee reports whether viewer may read a record that is not active
func canSee(viewer *models.User, authorID string) bool {
	return viewer != nil && (viewer.ID == authorID || viewer.IsModerator())
}

// CreatePost validates and stores a post in pending_ai and queues its classification
func (s *Service) CreatePost(ctx context.Context, userID string, in PostInput) (*PostView, error) {
	ctx, span := telemetry.StartSpan(ctx, "content.create_post")
	defer span.End()

	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CheckPost(ctx, user); err != nil {
		return nil, err
	}

	decision, err := s.limiter.CheckPostLimits(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal("rate_limit_check_failed", err)
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	post := &models.Post{
		ID:               uuid.NewString(),
		AuthorID:         user.ID,
		Title:            in.Title,
		Body:             in.Body,
		Tags:             in.Tags,
		Cover:            in.Cover,
		ModerationStatus: models.StatusPendingAI,
		CreatedAt:        now,
		UpdatedAt:        now,
		EditedAt:         now,
	}
	task, err := outbox.NewClassifyTask(models.TargetPost, post.ID, false)
	if err != nil {
		return nil, apperr.Internal("post_create_failed", err)
	}
	if err := s.posts.CreatePost(ctx, post, task); err != nil {
		return nil, apperr.Internal("post_create_failed", err)
	}
	s.wake()

	span.SetAttributes(attribute.String("post_id", post.ID))
	s.logger.Info("post submitted", zap.String("post_id", post.ID), zap.String("author_id", user.ID))

	post.Author = user
	view := postView(post)
	view.Moderation = moderationOf(post.ModerationStatus, "", false)
	return &view, nil
}

// UpdatePost applies an author edit. Changing the title, body or cover sends
// the post back through classification.
func (s *Service) UpdatePost(ctx context.Context, userID, postID string, in PostInput) (*PostView, error) {
	ctx, span := telemetry.StartSpan(ctx, "content.update_post")
	defer span.End()

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, apperr.Internal("post_lookup_failed", err)
	}
	if post == nil {
		return nil, apperr.NotFound("post_not_found")
	}
	if post.AuthorID != user.ID {
		return nil, apperr.Permission("not_owner")
	}
	if err := s.gate.CheckPost(ctx, user); err != nil {
		return nil, err
	}

	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	edit := PostEdit{
		Title:    in.Title,
		Body:     in.Body,
		Tags:     in.Tags,
		Cover:    post.Cover,
		EditedAt: post.EditedAt,
	}
	switch {
	case in.RemoveCover:
		edit.Cover = ""
	case in.Cover != "":
		edit.Cover = in.Cover
	}
	edit.Remoderate = edit.Title != post.Title || edit.Body != post.Body || edit.Cover != post.Cover

	next := post.ModerationStatus
	var task *models.Task
	if edit.Remoderate {
		if next, err = moderation.Transition(post.ModerationStatus, moderation.TriggerAuthorEdit); err != nil {
			return nil, apperr.Validation("invalid_state").WithMessage(err.Error())
		}
		edit.EditedAt = s.now()
		if task, err = outbox.NewClassifyTask(models.TargetPost, post.ID, true); err != nil {
			return nil, apperr.Internal("post_update_failed", err)
		}
	} else if post.ModerationStatus == models.StatusHidden {
		return nil, apperr.Validation("invalid_state")
	}

	ok, err := s.posts.EditPost(ctx, post.ID, post.ModerationStatus, edit, task)
	if err != nil {
		return nil, apperr.Internal("post_update_failed", err)
	}
	if !ok {
		return nil, apperr.Validation("post_changed").WithMessage("post was moderated concurrently, retry")
	}
	if task != nil {
		s.wake()
	}

	post.Title, post.Body, post.Tags, post.Cover, post.EditedAt = edit.Title, edit.Body, edit.Tags, edit.Cover, edit.EditedAt
	reason, reviewRequested := post.AIReason, post.ReviewRequested
	if edit.Remoderate {
		post.ModerationStatus = next
		reason, reviewRequested = "", false
	}

	view := postView(post)
	view.Moderation = moderationOf(post.ModerationStatus, reason, reviewRequested)
	return &view, nil
}

// DeletePost hides the author's own post
func (s *Service) DeletePost(ctx context.Context, userID, postID string) error {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return apperr.Internal("post_lookup_failed", err)
	}
	if post == nil {
		return apperr.NotFound("post_not_found")
	}
	if post.AuthorID != userID {
		return apperr.Permission("not_owner")
	}

	next, err := moderation.Transition(post.ModerationStatus, moderation.TriggerAuthorHide)
	if err != nil {
		// already hidden
		return nil
	}
	ok, err := s.posts.SetPostStatus(ctx, post.ID, post.ModerationStatus, next)
	if err != nil {
		return apperr.Internal("post_delete_failed", err)
	}
	if !ok {
		return apperr.Validation("post_changed").WithMessage("post was moderated concurrently, retry")
	}
	s.logger.Info("post hidden by author", zap.String("post_id", post.ID))
	return nil
}

// GetPost returns a visible post with its active comments and bumps its view count
func (s *Service) GetPost(ctx context.Context, viewerID, postID string) (*PostDetail, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, apperr.Internal("post_lookup_failed", err)
	}
	if post == nil {
		return nil, apperr.NotFound("post_not_found")
	}

	viewer := s.optionalUser(ctx, viewerID)
	if post.ModerationStatus != models.StatusActive && !canSee(viewer, post.AuthorID) {
		return nil, apperr.NotFound("post_not_found")
	}

	if post.ModerationStatus == models.StatusActive {
		if err := s.posts.IncrementViewCount(ctx, post.ID); err != nil {
			s.logger.Warn("failed to count view", zap.String("post_id", post.ID), zap.Error(err))
		} else {
			post.ViewCount++
		}
	}

	comments, err := s.comments.ListActiveComments(ctx, post.ID)
	if err != nil {
		return nil, apperr.Internal("comment_list_failed", err)
	}

	detail := &PostDetail{PostView: postView(post), Comments: make([]CommentView, 0, len(comments))}
	if canSee(viewer, post.AuthorID) {
		detail.Moderation = moderationOf(post.ModerationStatus, post.AIReason, post.ReviewRequested)
	}
	for _, c := range comments {
		detail.Comments = append(detail.Comments, commentView(c))
	}

	if viewer != nil {
		liked, err := s.posts.LikedPostIDs(ctx, viewer.ID, []string{post.ID})
		if err != nil {
			s.logger.Warn("like lookup failed", zap.Error(err))
		}
		detail.LikedByViewer = liked[post.ID]

		if post.AuthorID != viewer.ID {
			followed, err := s.follows.FollowedIDs(ctx, viewer.ID, []string{post.AuthorID})
			if err != nil {
				s.logger.Warn("follow lookup failed", zap.Error(err))
			}
			detail.AuthorFollowedByViewer = followed[post.AuthorID]
		}

		reported, err := s.posts.ReportedTargetIDs(ctx, viewer.ID, models.TargetPost, []string{post.ID})
		if err != nil {
			s.logger.Warn("report lookup failed", zap.Error(err))
		}
		detail.ReportedByViewer = reported[post.ID]

		if len(comments) > 0 {
			ids := make([]string, len(comments))
			for i, c := range comments {
				ids[i] = c.ID
			}
			reportedComments, err := s.posts.ReportedTargetIDs(ctx, viewer.ID, models.TargetComment, ids)
			if err != nil {
				s.logger.Warn("report lookup failed", zap.Error(err))
			}
			for i := range detail.Comments {
				detail.Comments[i].ReportedByViewer = reportedComments[detail.Comments[i].ID]
			}
		}
	}

	if s.hot != nil && post.ModerationStatus == models.StatusActive {
		hot, err := s.hot.HotIDs(ctx)
		if err != nil {
			s.logger.Warn("hot post lookup failed", zap.Error(err))
		}
		detail.IsHot = hot[post.ID]
	}
	return detail, nil
}

func (s *Service) optionalUser(ctx context.Context, userID string) *models.User {
	if userID == "" {
		return nil
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn("viewer lookup failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return user
}

// ListQuery selects a page of the post listing
type ListQuery struct {
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
	Search  string `json:"search"`
}

func (q *ListQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = 30
	}
	if q.PerPage > 100 {
		q.PerPage = 100
	}
}

// ListPosts returns active posts, most recently edited first, flagged with
// the viewer's likes and the hot set
func (s *Service) ListPosts(ctx context.Context, viewerID string, q ListQuery) (*PostPage, error) {
	q.normalize()

	posts, total, err := s.posts.ListActivePosts(ctx, q.Search, q.PerPage, (q.Page-1)*q.PerPage)
	if err != nil {
		return nil, apperr.Internal("post_list_failed", err)
	}

	page := &PostPage{Items: make([]PostView, 0, len(posts)), Page: q.Page, PerPage: q.PerPage, TotalItems: total}
	if len(posts) == 0 {
		return page, nil
	}

	var hot map[string]bool
	if s.hot != nil {
		if hot, err = s.hot.HotIDs(ctx); err != nil {
			s.logger.Warn("hot post lookup failed", zap.Error(err))
		}
	}

	var liked, followed map[string]bool
	if viewerID != "" {
		ids := make([]string, len(posts))
		authors := make([]string, 0, len(posts))
		seen := make(map[string]bool, len(posts))
		for i, p := range posts {
			ids[i] = p.ID
			if !seen[p.AuthorID] {
				seen[p.AuthorID] = true
				authors = append(authors, p.AuthorID)
			}
		}
		if liked, err = s.posts.LikedPostIDs(ctx, viewerID, ids); err != nil {
			s.logger.Warn("like lookup failed", zap.Error(err))
		}
		if followed, err = s.follows.FollowedIDs(ctx, viewerID, authors); err != nil {
			s.logger.Warn("follow lookup failed", zap.Error(err))
		}
	}

	for _, p := range posts {
		view := postView(p)
		view.IsHot = hot[p.ID]
		view.LikedByViewer = liked[p.ID]
		view.AuthorFollowedByViewer = followed[p.AuthorID]
		page.Items = append(page.Items, view)
	}
	return page, nil
}

// ListMyPosts returns the user's own posts with their moderation state.
// Hidden posts are left out.
func (s *Service) ListMyPosts(ctx context.Context, userID string) ([]PostView, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListAuthorPosts(ctx, user.ID, myPostsLimit)
	if err != nil {
		return nil, apperr.Internal("post_list_failed", err)
	}
	out := make([]PostView, 0, len(posts))
	for _, p := range posts {
		view := postView(p)
		view.Moderation = moderationOf(p.ModerationStatus, p.AIReason, p.ReviewRequested)
		out = append(out, view)
	}
	return out, nil
}

// ToggleLike flips the user's like on an active post
func (s *Service) ToggleLike(ctx context.Context, userID, postID string) (*LikeResult, error) {
	if userID == "" {
		return nil, apperr.Permission("unauthorized")
	}
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, apperr.Internal("post_lookup_failed", err)
	}
	if post == nil || post.ModerationStatus != models.StatusActive {
		return nil, apperr.NotFound("post_not_found")
	}

	liked, count, err := s.posts.ToggleLike(ctx, userID, post.ID)
	if err != nil {
		return nil, apperr.Internal("like_toggle_failed", err)
	}

	if liked && post.AuthorID != userID {
		s.notifier.Emit(ctx, notify.NewLike(post.AuthorID, userID, post.ID))
	}
	return &LikeResult{Liked: liked, LikeCount: count}, nil
}

// CreateComment validates and stores a comment in pending_ai and queues its classification
func (s *Service) CreateComment(ctx context.Context, userID, postID, body string) (*CommentView, error) {
	ctx, span := telemetry.StartSpan(ctx, "content.create_comment")
	defer span.End()

	body, err := ValidateComment(body)
	if err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, apperr.Internal("post_lookup_failed", err)
	}
	if post == nil || post.ModerationStatus != models.StatusActive {
		return nil, apperr.NotFound("post_not_found")
	}

	if err := s.gate.CheckComment(ctx, user); err != nil {
		return nil, err
	}

	decision, err := s.limiter.CheckCommentLimits(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal("rate_limit_check_failed", err)
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	comment := &models.Comment{
		ID:               uuid.NewString(),
		PostID:           post.ID,
		AuthorID:         user.ID,
		Body:             body,
		ModerationStatus: models.StatusPendingAI,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	task, err := outbox.NewClassifyTask(models.TargetComment, comment.ID, false)
	if err != nil {
		return nil, apperr.Internal("comment_create_failed", err)
	}
	if err := s.comments.CreateComment(ctx, comment, task); err != nil {
		return nil, apperr.Internal("comment_create_failed", err)
	}
	s.wake()

	span.SetAttributes(attribute.String("comment_id", comment.ID))

	comment.Author = user
	view := commentView(comment)
	view.Moderation = moderationOf(comment.ModerationStatus, "", false)
	return &view, nil
}

// ListComments returns the active comments of a visible post
func (s *Service) ListComments(ctx context.Context, viewerID, postID string) ([]CommentView, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, apperr.Internal("post_lookup_failed", err)
	}
	if post == nil {
		return nil, apperr.NotFound("post_not_found")
	}
	if post.ModerationStatus != models.StatusActive && !canSee(s.optionalUser(ctx, viewerID), post.AuthorID) {
		return nil, apperr.NotFound("post_not_found")
	}

	comments, err := s.comments.ListActiveComments(ctx, post.ID)
	if err != nil {
		return nil, apperr.Internal("comment_list_failed", err)
	}
	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, commentView(c))
	}
	return views, nil
}
