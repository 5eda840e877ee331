// Package penalty tracks per-user content rejections and the posting
// suspension they cause.
package penalty

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/agora-community/agora/pkg/logging"
)

// DefaultLimit is the reject count at which posting is suspended
const DefaultLimit = 3

const maxCASAttempts = 5

// ErrConflict is returned when the reject count kept changing under every attempt
var ErrConflict = errors.New("penalty: concurrent update conflict")

// Store reads and conditionally writes a user's penalty fields
type Store interface {
	// GetRejectCount returns found=false when the user does not exist
	GetRejectCount(ctx context.Context, userID string) (count int, found bool, err error)
	// CompareAndSetRejectCount writes next and canPost only if the stored count still equals old
	CompareAndSetRejectCount(ctx context.Context, userID string, old, next int, canPost bool) (bool, error)
}

// Next computes the saturating counter update
func Next(current, delta, limit int) (next int, canPost bool) {
	next = current + delta
	if next < 0 {
		next = 0
	}
	return next, next < limit
}

// Tracker applies reject-count deltas
type Tracker struct {
	store  Store
	limit  int
	logger *zap.Logger
}

// NewTracker creates a tracker. A non-positive limit falls back to DefaultLimit.
func NewTracker(store Store, limit int) *Tracker {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Tracker{
		store:  store,
		limit:  limit,
		logger: logging.WithComponent("penalty"),
	}
}

// Limit returns the suspension threshold
func (t *Tracker) Limit() int {
	return t.limit
}

// ApplyDelta adds delta to the user's reject count, floored at zero, and
// recomputes canPost. It is a no-op for a zero delta, an empty user id or an
// unknown user.
func (t *Tracker) ApplyDelta(ctx context.Context, userID string, delta int) error {
	if delta == 0 || userID == "" {
		return nil
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		current, found, err := t.store.GetRejectCount(ctx, userID)
		if err != nil {
			return fmt.Errorf("read reject count: %w", err)
		}
		if !found {
			t.logger.Warn("penalty for unknown user ignored", zap.String("user_id", userID))
			return nil
		}

		next, canPost := Next(current, delta, t.limit)
		ok, err := t.store.CompareAndSetRejectCount(ctx, userID, current, next, canPost)
		if err != nil {
			return fmt.Errorf("write reject count: %w", err)
		}
		if ok {
			t.logger.Debug("reject count updated",
				zap.String("user_id", userID),
				zap.Int("from", current),
				zap.Int("to", next),
				zap.Bool("can_post", canPost),
			)
			return nil
		}
	}

	return ErrConflict
}
