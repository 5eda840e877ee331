// Package ratelimit provides the per-IP fixed-window limiter used at the API
// edge and the datastore-backed per-user action limits.
package ratelimit

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/agora-community/agora/pkg/logging"
)

// Result is the outcome of a window check
type Result struct {
	Limited   bool
	Remaining int
	ResetAt   time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// WindowLimiter counts hits per key in fixed windows. State is process-local.
type WindowLimiter struct {
	windows *xsync.MapOf[string, window]
	now     func() time.Time
	logger  *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWindowLimiter creates a limiter and starts a sweep of expired windows
// every sweepInterval. A non-positive interval disables the sweep.
func NewWindowLimiter(sweepInterval time.Duration) *WindowLimiter {
	l := &WindowLimiter{
		windows: xsync.NewMapOf[string, window](),
		now:     time.Now,
		logger:  logging.WithComponent("ratelimit"),
		stopCh:  make(chan struct{}),
	}
	if sweepInterval > 0 {
		go l.sweepLoop(sweepInterval)
	}
	return l
}

// Check records a hit for key. A fresh window opens when the previous one has
// reset; once count reaches max further hits are limited until ResetAt. A max
// of zero or less limits every hit.
func (l *WindowLimiter) Check(key string, max int, windowSize time.Duration) Result {
	now := l.now()
	var res Result

	l.windows.Compute(key, func(w window, loaded bool) (window, bool) {
		if !loaded || !now.Before(w.resetAt) {
			w = window{resetAt: now.Add(windowSize)}
		}
		if w.count >= max {
			res = Result{Limited: true, Remaining: 0, ResetAt: w.resetAt}
			return w, false
		}
		w.count++
		res = Result{Remaining: max - w.count, ResetAt: w.resetAt}
		return w, false
	})

	if res.Remaining < 0 {
		res.Remaining = 0
	}
	return res
}

// Len returns the number of tracked windows
func (l *WindowLimiter) Len() int {
	return l.windows.Size()
}

// Sweep deletes every window that has reset and returns how many were removed
func (l *WindowLimiter) Sweep() int {
	now := l.now()
	var expired []string
	l.windows.Range(func(key string, w window) bool {
		if !now.Before(w.resetAt) {
			expired = append(expired, key)
		}
		return true
	})

	removed := 0
	for _, key := range expired {
		l.windows.Compute(key, func(w window, loaded bool) (window, bool) {
			if loaded && !now.Before(w.resetAt) {
				removed++
				return w, true
			}
			return w, !loaded
		})
	}
	return removed
}

// Stop ends the background sweep
func (l *WindowLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *WindowLimiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("swept expired rate limit windows", zap.Int("removed", n), zap.Int("remaining", l.Len()))
			}
		case <-l.stopCh:
			return
		}
	}
}
