package content

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/internal/notify"
	"github.com/agora-community/agora/internal/ratelimit"
)

type memStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	invites  map[string]*models.Invite
	posts    map[string]*models.Post
	comments map[string]*models.Comment
	likes    map[string]bool
	follows  map[string]*models.Follow
	reported map[string]bool
	tasks    []*models.Task
	views    int
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*models.User{},
		invites:  map[string]*models.Invite{},
		posts:    map[string]*models.Post{},
		comments: map[string]*models.Comment{},
		likes:    map[string]bool{},
		follows:  map[string]*models.Follow{},
		reported: map[string]bool{},
	}
}

func (m *memStore) addUser(u *models.User) *models.User {
	m.users[u.ID] = u
	return u
}

func (m *memStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetEnabledInvite(_ context.Context, code string) (*models.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invites {
		if inv.Code == code && inv.Enabled {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ClaimInvite(_ context.Context, inviteID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := m.invites[inviteID]
	if inv.UsedBy != nil && *inv.UsedBy != userID {
		return false, nil
	}
	now := time.Now()
	inv.UsedBy = &userID
	inv.UsedAt = &now
	return true, nil
}

func (m *memStore) RestorePosting(_ context.Context, userID string, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.users[userID]; u != nil && u.RejectCount < limit {
		u.CanPost = true
	}
	return nil
}

func (m *memStore) CreatePost(_ context.Context, post *models.Post, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *post
	cp.Author = nil
	m.posts[post.ID] = &cp
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *memStore) GetPost(_ context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.Author = m.users[p.AuthorID]
	return &cp, nil
}

func (m *memStore) ListActivePosts(_ context.Context, search string, limit, offset int) ([]*models.Post, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Post
	for _, p := range m.posts {
		if p.ModerationStatus != models.StatusActive {
			continue
		}
		if search != "" && !strings.Contains(p.Title, search) && !strings.Contains(p.Body, search) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EditedAt.After(out[j].EditedAt) })
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *memStore) ListAuthorPosts(_ context.Context, authorID string, limit int) ([]*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Post
	for _, p := range m.posts {
		if p.AuthorID == authorID && p.ModerationStatus != models.StatusHidden {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EditedAt.After(out[j].EditedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) EditPost(_ context.Context, id string, expected models.ModerationStatus, edit PostEdit, task *models.Task) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.posts[id]
	if p == nil || p.ModerationStatus != expected {
		return false, nil
	}
	p.Title, p.Body, p.Tags, p.Cover, p.EditedAt = edit.Title, edit.Body, edit.Tags, edit.Cover, edit.EditedAt
	if edit.Remoderate {
		p.ModerationStatus = models.StatusPendingAI
		p.ReviewRequested = false
		p.AIReason = ""
	}
	if task != nil {
		m.tasks = append(m.tasks, task)
	}
	return true, nil
}

func (m *memStore) SetPostStatus(_ context.Context, id string, expected, next models.ModerationStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.posts[id]
	if p == nil || p.ModerationStatus != expected {
		return false, nil
	}
	p.ModerationStatus = next
	return true, nil
}

func (m *memStore) IncrementViewCount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[id].ViewCount++
	m.views++
	return nil
}

func (m *memStore) ToggleLike(_ context.Context, userID, postID string) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := models.LikeKey(userID, postID)
	liked := !m.likes[key]
	if liked {
		m.likes[key] = true
	} else {
		delete(m.likes, key)
	}
	count := 0
	for k := range m.likes {
		if strings.HasSuffix(k, "_"+postID) {
			count++
		}
	}
	m.posts[postID].LikeCount = count
	return liked, count, nil
}

func (m *memStore) LikedPostIDs(_ context.Context, userID string, postIDs []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, id := range postIDs {
		if m.likes[models.LikeKey(userID, id)] {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memStore) ReportedTargetIDs(_ context.Context, reporterID string, typ models.TargetType, ids []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range ids {
		if m.reported[reporterID+"_"+string(typ)+"_"+id] {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memStore) Follow(_ context.Context, followerID, followedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := followerID + "_" + followedID
	if _, ok := m.follows[key]; !ok {
		m.follows[key] = &models.Follow{FollowerID: followerID, FollowedID: followedID, CreatedAt: time.Now().Add(time.Duration(len(m.follows)) * time.Second)}
	}
	return nil
}

func (m *memStore) Unfollow(_ context.Context, followerID, followedID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := followerID + "_" + followedID
	_, ok := m.follows[key]
	delete(m.follows, key)
	return ok, nil
}

func (m *memStore) ListFollowing(_ context.Context, followerID string, limit int) ([]*models.Follow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Follow
	for _, f := range m.follows {
		if f.FollowerID == followerID {
			cp := *f
			cp.Followed = m.users[f.FollowedID]
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) FollowedIDs(_ context.Context, followerID string, userIDs []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, id := range userIDs {
		if _, ok := m.follows[followerID+"_"+id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memStore) CreateComment(_ context.Context, c *models.Comment, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Author = nil
	m.comments[c.ID] = &cp
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *memStore) ListActiveComments(_ context.Context, postID string) ([]*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Comment
	for _, c := range m.comments {
		if c.PostID == postID && c.ModerationStatus == models.StatusActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type stubLimiter struct {
	post    ratelimit.Decision
	comment ratelimit.Decision
}

func allowAll() *stubLimiter {
	return &stubLimiter{post: ratelimit.Decision{Allowed: true}, comment: ratelimit.Decision{Allowed: true}}
}

func (s *stubLimiter) CheckPostLimits(context.Context, string) (ratelimit.Decision, error) {
	return s.post, nil
}

func (s *stubLimiter) CheckCommentLimits(context.Context, string) (ratelimit.Decision, error) {
	return s.comment, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingNotifier) Emit(_ context.Context, msg notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

type staticHot map[string]bool

func (h staticHot) HotIDs(context.Context) (map[string]bool, error) { return h, nil }

type countingWaker struct{ n int }

func (w *countingWaker) Notify() { w.n++ }

type harness struct {
	store    *memStore
	limiter  *stubLimiter
	notifier *recordingNotifier
	waker    *countingWaker
	svc      *Service
}

func newHarness(opts Options, hot HotSet) *harness {
	h := &harness{
		store:    newMemStore(),
		limiter:  allowAll(),
		notifier: &recordingNotifier{},
		waker:    &countingWaker{},
	}
	h.svc = NewService(h.store, h.store, h.store, h.store, h.limiter, h.notifier, hot, h.waker, opts)
	return h
}
