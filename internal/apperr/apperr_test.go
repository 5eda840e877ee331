package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("title_missing")))
	assert.Equal(t, KindPermission, KindOf(Permission("not_author")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("post_not_found")))
	assert.Equal(t, KindRateLimited, KindOf(RateLimited("post_cooldown", "slow down", 30)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestAsThroughWrapping(t *testing.T) {
	base := RateLimited("comment_cooldown", "评论太快了，请休息一下", 7)
	wrapped := fmt.Errorf("create comment: %w", base)

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, 7, appErr.RetryAfter)
	assert.True(t, Is(wrapped, "comment_cooldown"))
	assert.False(t, Is(wrapped, "post_cooldown"))
}

func TestInternalUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("report_failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestWithMessageCopies(t *testing.T) {
	base := Validation("title_too_long")
	msg := base.WithMessage("标题过长")

	assert.Empty(t, base.Message)
	assert.Equal(t, "标题过长", msg.Message)
	assert.Equal(t, "title_too_long", msg.Code)
}
