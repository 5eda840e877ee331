package ratelimit

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-community/agora/internal/apperr"
	"github.com/agora-community/agora/pkg/config"
)

type fakeActivity struct {
	posts    []time.Time
	comments []time.Time
	err      error
}

func latest(ts []time.Time) (time.Time, bool) {
	if len(ts) == 0 {
		return time.Time{}, false
	}
	max := ts[0]
	for _, t := range ts {
		if t.After(max) {
			max = t
		}
	}
	return max, true
}

func (f *fakeActivity) LatestPostTime(context.Context, string) (time.Time, bool, error) {
	t, ok := latest(f.posts)
	return t, ok, f.err
}

func (f *fakeActivity) LatestCommentTime(context.Context, string) (time.Time, bool, error) {
	t, ok := latest(f.comments)
	return t, ok, f.err
}

func (f *fakeActivity) PostTimesSince(_ context.Context, _ string, since time.Time, limit int) ([]time.Time, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []time.Time
	for _, t := range f.posts {
		if !t.Before(since) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func testConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		PostCooldown:    time.Minute,
		CommentCooldown: 10 * time.Second,
		HourlyPostCap:   10,
		DailyPostCap:    100,
	}
}

func newUserLimiter(store ActivityStore, now time.Time) *UserLimiter {
	l := NewUserLimiter(store, testConfig())
	l.now = func() time.Time { return now }
	return l
}

func TestCheckPostLimitsCooldown(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeActivity{posts: []time.Time{now.Add(-20 * time.Second)}}

	d, err := newUserLimiter(store, now).CheckPostLimits(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonPostCooldown, d.Reason)
	assert.Equal(t, "发帖太快了，请休息一下", d.Message)
	assert.Equal(t, 40, d.RetryAfterSeconds)

	appErr, ok := apperr.As(d.Err())
	require.True(t, ok)
	assert.Equal(t, apperr.KindRateLimited, appErr.Kind)
	assert.Equal(t, 40, appErr.RetryAfter)
}

func TestCheckPostLimitsAllowsFirstPost(t *testing.T) {
	d, err := newUserLimiter(&fakeActivity{}, time.Now()).CheckPostLimits(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.NoError(t, d.Err())
}

func TestCheckPostLimitsHourlyCap(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeActivity{}
	// ten posts spaced five minutes apart, the oldest 50 minutes ago
	for i := 0; i < 10; i++ {
		store.posts = append(store.posts, now.Add(-time.Duration(5+5*i)*time.Minute))
	}

	d, err := newUserLimiter(store, now).CheckPostLimits(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonPostHourlyLimit, d.Reason)
	assert.Equal(t, "每小时最多发布 10 篇帖子", d.Message)
	assert.Equal(t, 10*60, d.RetryAfterSeconds)
}

func TestCheckPostLimitsDailyCap(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeActivity{}
	// 100 posts spread over the last 23 hours, none inside the last hour
	for i := 0; i < 100; i++ {
		store.posts = append(store.posts, now.Add(-2*time.Hour-time.Duration(i)*12*time.Minute))
	}

	d, err := newUserLimiter(store, now).CheckPostLimits(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonPostDailyLimit, d.Reason)
	assert.Equal(t, "每天最多发布 100 篇帖子", d.Message)
	assert.GreaterOrEqual(t, d.RetryAfterSeconds, 1)
}

func TestCheckCommentLimits(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	d, err := newUserLimiter(&fakeActivity{comments: []time.Time{now.Add(-9500 * time.Millisecond)}}, now).
		CheckCommentLimits(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonCommentCooldown, d.Reason)
	assert.Equal(t, 1, d.RetryAfterSeconds)

	d, err = newUserLimiter(&fakeActivity{comments: []time.Time{now.Add(-11 * time.Second)}}, now).
		CheckCommentLimits(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCheckLimitsStoreError(t *testing.T) {
	l := newUserLimiter(&fakeActivity{err: errors.New("boom")}, time.Now())

	_, err := l.CheckPostLimits(context.Background(), "u1")
	assert.Error(t, err)
	_, err = l.CheckCommentLimits(context.Background(), "u1")
	assert.Error(t, err)
}
