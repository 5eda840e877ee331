package hotscore

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/pkg/config"
	"github.com/agora-community/agora/pkg/logging"
	"github.com/agora-community/agora/pkg/telemetry"
)

// JobStore reads recent active posts and persists their scores
type JobStore interface {
	// ActivePostsSince returns active posts created at or after since, newest first.
	ActivePostsSince(ctx context.Context, since time.Time, limit int) ([]*models.Post, error)
	// UpdateHotScores writes every score inside a single transaction.
	UpdateHotScores(ctx context.Context, scores map[string]float64) error
}

// Job recomputes hot scores in batches
type Job struct {
	store    JobStore
	scorer   *Scorer
	interval time.Duration
	lookback time.Duration
	limit    int
	now      func() time.Time
	logger   *zap.Logger
}

// NewJob creates a hot score job
func NewJob(store JobStore, cfg *config.HotScoreConfig) *Job {
	return &Job{
		store:    store,
		scorer:   NewScorer(cfg),
		interval: cfg.Interval,
		lookback: cfg.Lookback,
		limit:    cfg.BatchLimit,
		now:      time.Now,
		logger:   logging.WithComponent("hotscore"),
	}
}

// RunOnce scores one batch and returns how many posts were updated
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "hotscore.run")
	defer span.End()

	start := j.now()
	posts, err := j.store.ActivePostsSince(ctx, start.Add(-j.lookback), j.limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to load posts: %w", err)
	}

	scores := make(map[string]float64, len(posts))
	for _, p := range posts {
		scores[p.ID] = j.scorer.Score(p.LikeCount, p.CommentCount, p.ViewCount, start.Sub(p.CreatedAt))
	}

	if len(scores) > 0 {
		if err := j.store.UpdateHotScores(ctx, scores); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, fmt.Errorf("failed to update scores: %w", err)
		}
	}

	span.SetAttributes(attribute.Int("posts", len(scores)))
	return len(scores), nil
}

// Start runs the job immediately and then on every tick until ctx is done.
// A failed run is logged and the next tick proceeds.
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("hot score scheduler started",
		zap.Duration("interval", j.interval),
		zap.Duration("lookback", j.lookback),
		zap.Int("batch_limit", j.limit),
	)

	j.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("hot score scheduler stopped")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *Job) runLogged(ctx context.Context) {
	start := time.Now()
	n, err := j.RunOnce(ctx)
	if err != nil {
		j.logger.Error("hot score update failed", zap.Error(err))
		return
	}
	j.logger.Info("updated hot scores", zap.Int("posts", n), zap.Duration("duration", time.Since(start)))
}
