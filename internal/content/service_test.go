package content

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-community/agora/internal/apperr"
	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/internal/outbox"
	"github.com/agora-community/agora/internal/ratelimit"
)

func activeUser(id string) *models.User {
	return &models.User{ID: id, Name: "name-" + id, Role: models.RoleUser, CanPost: true}
}

func TestCreatePostQueuesClassification(t *testing.T) {
	h := newHarness(Options{}, nil)
	h.store.addUser(activeUser("u1"))

	view, err := h.svc.CreatePost(context.Background(), "u1", PostInput{
		Title: " Hello ",
		Body:  "First post",
		Tags:  []string{" go ", ""},
	})
	require.NoError(t, err)
	require.NotNil(t, view.Moderation)
	assert.Equal(t, models.StatusPendingAI, view.Moderation.Status)
	assert.Equal(t, "Hello", view.Title)
	assert.Equal(t, []string{"go"}, view.Tags)
	assert.Equal(t, "name-u1", view.Author.Name)

	stored := h.store.posts[view.ID]
	require.NotNil(t, stored)
	assert.Equal(t, models.StatusPendingAI, stored.ModerationStatus)

	require.Len(t, h.store.tasks, 1)
	var payload outbox.ClassifyPayload
	require.NoError(t, json.Unmarshal([]byte(h.store.tasks[0].Payload), &payload))
	assert.Equal(t, outbox.ClassifyPayload{TargetType: models.TargetPost, TargetID: view.ID}, payload)
	assert.Equal(t, 1, h.waker.n)
}

func TestCreatePostGates(t *testing.T) {
	ctx := context.Background()

	t.Run("validation runs first", func(t *testing.T) {
		h := newHarness(Options{}, nil)
		_, err := h.svc.CreatePost(ctx, "u1", PostInput{Title: "t"})
		assertCode(t, err, "title_or_body_missing")
	})

	t.Run("unknown user", func(t *testing.T) {
		h := newHarness(Options{}, nil)
		_, err := h.svc.CreatePost(ctx, "ghost", PostInput{Title: "t", Body: "b"})
		assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
	})

	t.Run("suspended at reject limit", func(t *testing.T) {
		h := newHarness(Options{}, nil)
		u := h.store.addUser(activeUser("u1"))
		u.CanPost, u.RejectCount = false, 3
		_, err := h.svc.CreatePost(ctx, "u1", PostInput{Title: "t", Body: "b"})
		assertCode(t, err, "can_post_disabled")
		assert.Empty(t, h.store.tasks)
	})

	t.Run("rate limited", func(t *testing.T) {
		h := newHarness(Options{}, nil)
		h.store.addUser(activeUser("u1"))
		h.limiter.post = ratelimit.Decision{Reason: ratelimit.ReasonPostCooldown, Message: "发帖太快了，请休息一下", RetryAfterSeconds: 42}

		_, err := h.svc.CreatePost(ctx, "u1", PostInput{Title: "t", Body: "b"})
		appErr, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.KindRateLimited, appErr.Kind)
		assert.Equal(t, ratelimit.ReasonPostCooldown, appErr.Code)
		assert.Equal(t, 42, appErr.RetryAfter)
		assert.Empty(t, h.store.posts)
	})
}

func TestInviteGate(t *testing.T) {
	ctx := context.Background()
	other := "someone-else"

	tests := []struct {
		name     string
		code     string
		invite   *models.Invite
		wantCode string
	}{
		{"no code", "", nil, "invite_required"},
		{"unknown code", "nope", nil, "invite_invalid"},
		{"disabled", "c1", &models.Invite{ID: "i1", Code: "c1"}, "invite_invalid"},
		{"held by another user", "c1", &models.Invite{ID: "i1", Code: "c1", Enabled: true, UsedBy: &other}, "invite_in_use"},
		{"unused", "c1", &models.Invite{ID: "i1", Code: "c1", Enabled: true}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(Options{InviteRequired: true}, nil)
			u := h.store.addUser(activeUser("u1"))
			u.InviteCode = tt.code
			if tt.invite != nil {
				h.store.invites[tt.invite.ID] = tt.invite
			}

			_, err := h.svc.CreatePost(ctx, "u1", PostInput{Title: "t", Body: "b"})
			if tt.wantCode != "" {
				assertCode(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, tt.invite.UsedBy)
			assert.Equal(t, "u1", *tt.invite.UsedBy)
		})
	}
}

func TestInviteRestoresPosting(t *testing.T) {
	h := newHarness(Options{}, nil)
	u := h.store.addUser(activeUser("u1"))
	u.CanPost, u.RejectCount, u.InviteCode = false, 2, "c1"
	h.store.invites["i1"] = &models.Invite{ID: "i1", Code: "c1", Enabled: true}

	_, err := h.svc.CreatePost(context.Background(), "u1", PostInput{Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.True(t, h.store.users["u1"].CanPost)

	// a second post reuses the invite the user already holds
	_, err = h.svc.CreatePost(context.Background(), "u1", PostInput{Title: "t2", Body: "b2"})
	require.NoError(t, err)
}

func seedPost(h *harness, id, author string, status models.ModerationStatus) *models.Post {
	now := time.Now().UTC()
	p := &models.Post{
		ID: id, AuthorID: author, Title: "title " + id, Body: "body " + id,
		ModerationStatus: status, CreatedAt: now, UpdatedAt: now, EditedAt: now,
	}
	h.store.posts[id] = p
	return p
}

func TestUpdatePostRemoderates(t *testing.T) {
	h := newHarness(Options{}, nil)
	h.store.addUser(activeUser("u1"))
	p := seedPost(h, "p1", "u1", models.StatusRejected)
	p.AIReason = "spam"
	p.ReviewRequested = true
	before := p.EditedAt

	view, err := h.svc.UpdatePost(context.Background(), "u1", "p1", PostInput{Title: "new title", Body: p.Body})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingAI, view.Moderation.Status)
	assert.Empty(t, view.Moderation.AIReason)

	stored := h.store.posts["p1"]
	assert.Equal(t, models.StatusPendingAI, stored.ModerationStatus)
	assert.False(t, stored.ReviewRequested)
	assert.Empty(t, stored.AIReason)
	assert.False(t, stored.EditedAt.Before(before))

	require.Len(t, h.store.tasks, 1)
	var payload outbox.ClassifyPayload
	require.NoError(t, json.Unmarshal([]byte(h.store.tasks[0].Payload), &payload))
	assert.True(t, payload.Edited)
}

func TestUpdatePostTagsOnlyKeepsStatus(t *testing.T) {
	h := newHarness(Options{}, nil)
	h.store.addUser(activeUser("u1"))
	p := seedPost(h, "p1", "u1", models.StatusActive)

	view, err := h.svc.UpdatePost(context.Background(), "u1", "p1", PostInput{Title: p.Title, Body: p.Body, Tags: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, view.Moderation.Status)
	assert.Equal(t, []string{"x"}, h.store.posts["p1"].Tags)
	assert.Empty(t, h.store.tasks)
}

func TestUpdatePostRemovesCover(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{}, nil)
	h.store.addUser(activeUser("u1"))
	p := seedPost(h, "p1", "u1", models.StatusActive)
	p.Cover = dataURL("image/png", pngHeader)
	seedPost(h, "bare", "u1", models.StatusActive)

	// keeping the cover leaves the post as it is
	view, err := h.svc.UpdatePost(ctx, "u1", "p1", PostInput{Title: p.Title, Body: p.Body})
	require.NoError(t, err)
	assert.NotEmpty(t, view.Cover)
	assert.Equal(t, models.StatusActive, view.Moderation.Status)
	assert.Empty(t, h.store.tasks)

	view, err = h.svc.UpdatePost(ctx, "u1", "p1", PostInput{Title: p.Title, Body: p.Body, RemoveCover: true})
	require.NoError(t, err)
	assert.Empty(t, view.Cover)
	assert.Equal(t, models.StatusPendingAI, view.Moderation.Status)
	assert.Empty(t, h.store.posts["p1"].Cover)
	require.Len(t, h.store.tasks, 1)

	// removing a cover that is not there changes nothing
	view, err = h.svc.UpdatePost(ctx, "u1", "bare", PostInput{Title: "title bare", Body: "body bare", RemoveCover: true})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, view.Moderation.Status)
	assert.Len(t, h.store.tasks, 1)
}

func TestUpdatePostRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{}, nil)
	h.store.addUser(activeUser("u1"))
	h.store.addUser(activeUser("u2"))
	seedPost(h, "p1", "u1", models.StatusActive)
	seedPost(h, "hidden", "u1", models.StatusHidden)

	_, err := h.svc.UpdatePost(ctx, "u2", "p1", PostInput{Title: "a", Body: "b"})
	assertCode(t, err, "not_owner")

	_, err = h.svc.UpdatePost(ctx, "u1", "missing", PostInput{Title: "a", Body: "b"})
	assertCode(t, err, "post_not_found")

	_, err = h.svc.UpdatePost(ctx, "u1", "hidden", PostInput{Title: "a", Body: "b"})
	assertCode(t, err, "invalid_state")
}

func TestDeletePostHides(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{}, nil)
	seedPost(h, "p1", "u1", models.StatusPendingReview)

	assertCode(t, h.svc.DeletePost(ctx, "u2", "p1"), "not_owner")

	require.NoError(t, h.svc.DeletePost(ctx, "u1", "p1"))
	assert.Equal(t, models.StatusHidden, h.store.posts["p1"].ModerationStatus)

	// hiding twice is a no-op
	require.NoError(t, h.svc.DeletePost(ctx, "u1", "p1"))
}

func TestGetPostVisibilityAndViews(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{}, staticHot{"p1": true})
	h.store.addUser(activeUser("u1"))
	h.store.addUser(activeUser("viewer"))
	mod := h.store.addUser(activeUser("mod"))
	mod.Role = models.RoleModerator
	seedPost(h, "p1", "u1", models.StatusActive)
	seedPost(h, "p2", "u1", models.StatusRejected)

	now := time.Now().UTC()
	h.store.comments["c2"] = &models.Comment{ID: "c2", PostID: "p1", AuthorID: "viewer", Body: "second", ModerationStatus: models.StatusActive, CreatedAt: now}
	h.store.comments["c1"] = &models.Comment{ID: "c1", PostID: "p1", AuthorID: "viewer", Body: "first", ModerationStatus: models.StatusActive, CreatedAt: now.Add(-time.Minute)}
	h.store.comments["c3"] = &models.Comment{ID: "c3", PostID: "p1", AuthorID: "viewer", Body: "pending", ModerationStatus: models.StatusPendingAI, CreatedAt: now}
	h.store.likes[models.LikeKey("viewer", "p1")] = true
	h.store.reported["viewer_comment_c1"] = true

	detail, err := h.svc.GetPost(ctx, "viewer", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, detail.ViewCount)
	assert.True(t, detail.LikedByViewer)
	assert.True(t, detail.IsHot)
	assert.Nil(t, detail.Moderation)
	require.Len(t, detail.Comments, 2)
	assert.Equal(t, "c1", detail.Comments[0].ID)
	assert.True(t, detail.Comments[0].ReportedByViewer)
	assert.False(t, detail.Comments[1].ReportedByViewer)

	_, err = h.svc.GetPost(ctx, "viewer", "p2")
	assertCode(t, err, "post_not_found")
	_, err = h.svc.GetPost(ctx, "", "p2")
	assertCode(t, err, "post_not_found")

	own, err := h.svc.GetPost(ctx, "u1", "p2")
	require.NoError(t, err)
	require.NotNil(t, own.Moderation)
	assert.Equal(t, models.StatusRejected, own.Moderation.Status)

	_, err = h.svc.GetPost(ctx, "mod", "p2")
	require.NoError(t, err)

	// only active posts count views
	assert.Equal(t, 1, h.store.views)
}

func TestListPosts(t *testing.T) {
	h := newHarness(Options{}, staticHot{"b": true})
	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		p := seedPost(h, id, "u1", models.StatusActive)
		p.EditedAt = base.Add(time.Duration(i) * time.Minute)
	}
	seedPost(h, "hidden", "u1", models.StatusHidden)
	h.store.likes[models.LikeKey("viewer", "a")] = true

	page, err := h.svc.ListPosts(context.Background(), "viewer", ListQuery{PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalItems)
	assert.Equal(t, 1, page.Page)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "c", page.Items[0].ID)
	assert.Equal(t, "b", page.Items[1].ID)
	assert.True(t, page.Items[1].IsHot)

	page, err = h.svc.ListPosts(context.Background(), "viewer", ListQuery{Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "a", page.Items[0].ID)
	assert.True(t, page.Items[0].LikedByViewer)

	page, err = h.svc.ListPosts(context.Background(), "", ListQuery{Search: "body b"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "b", page.Items[0].ID)
}

func TestToggleLike(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{}, nil)
	seedPost(h, "p1", "author", models.StatusActive)
	seedPost(h, "p2", "author", models.StatusPendingAI)

	res, err := h.svc.ToggleLike(ctx, "fan", "p1")
	require.NoError(t, err)
	assert.Equal(t, &LikeResult{Liked: true, LikeCount: 1}, res)
	require.Len(t, h.notifier.msgs, 1)
	assert.Equal(t, "收到点赞", h.notifier.msgs[0].Title)
	assert.Equal(t, "author", h.notifier.msgs[0].UserID)

	res, err = h.svc.ToggleLike(ctx, "fan", "p1")
	require.NoError(t, err)
	assert.Equal(t, &LikeResult{Liked: false, LikeCount: 0}, res)
	assert.Len(t, h.notifier.msgs, 1)

	// liking your own post is silent
	_, err = h.svc.ToggleLike(ctx, "author", "p1")
	require.NoError(t, err)
	assert.Len(t, h.notifier.msgs, 1)

	_, err = h.svc.ToggleLike(ctx, "fan", "p2")
	assertCode(t, err, "post_not_found")
}

func TestCreateComment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{}, nil)
	h.store.addUser(activeUser("u1"))
	seedPost(h, "p1", "author", models.StatusActive)
	seedPost(h, "p2", "author", models.StatusHidden)

	view, err := h.svc.CreateComment(ctx, "u1", "p1", "  hi there ")
	require.NoError(t, err)
	assert.Equal(t, "hi there", view.Body)
	assert.Equal(t, models.StatusPendingAI, view.Moderation.Status)
	assert.Equal(t, models.StatusPendingAI, h.store.comments[view.ID].ModerationStatus)
	require.Len(t, h.store.tasks, 1)
	assert.Equal(t, outbox.KindClassify, h.store.tasks[0].Kind)

	_, err = h.svc.CreateComment(ctx, "u1", "p2", "hi")
	assertCode(t, err, "post_not_found")

	h.limiter.comment = ratelimit.Decision{Reason: ratelimit.ReasonCommentCooldown, RetryAfterSeconds: 3}
	_, err = h.svc.CreateComment(ctx, "u1", "p1", "again")
	assertCode(t, err, ratelimit.ReasonCommentCooldown)
}

func TestCreateCommentPermission(t *testing.T) {
	ctx := context.Background()

	h := newHarness(Options{}, nil)
	u := h.store.addUser(activeUser("u1"))
	u.CanPost = false
	seedPost(h, "p1", "author", models.StatusActive)
	_, err := h.svc.CreateComment(ctx, "u1", "p1", "hi")
	assertCode(t, err, "can_post_disabled")

	h = newHarness(Options{InviteRequired: true}, nil)
	h.store.addUser(activeUser("u1"))
	seedPost(h, "p1", "author", models.StatusActive)
	_, err = h.svc.CreateComment(ctx, "u1", "p1", "hi")
	assertCode(t, err, "invite_required")
}
