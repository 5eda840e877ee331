package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/pkg/config"
	"github.com/agora-community/agora/pkg/logging"
	"github.com/agora-community/agora/pkg/telemetry"
)

// ErrBadPayload marks a task that can never succeed. It is not retried.
var ErrBadPayload = errors.New("malformed task payload")

// Handler runs one task. Returning an error schedules a retry.
type Handler func(ctx context.Context, task *models.Task) error

// DeadHandler runs once a task of its kind is killed
type DeadHandler func(ctx context.Context, task *models.Task) error

// Store claims and settles tasks
type Store interface {
	// ClaimTasks leases up to limit due tasks: pending ones whose available_at
	// has passed, and processing ones whose lease expired before staleBefore.
	// Each claim increments the task's attempts.
	ClaimTasks(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.Task, error)
	CompleteTask(ctx context.Context, id string) error
	RetryTask(ctx context.Context, id, lastError string, availableAt time.Time) error
	KillTask(ctx context.Context, id, lastError string) error
}

// Dispatcher polls the outbox and runs tasks on a bounded worker pool
type Dispatcher struct {
	store       Store
	handlers    map[string]Handler
	dead        map[string]DeadHandler
	workers     int
	poll        time.Duration
	lease       time.Duration
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
	wake        chan struct{}
	logger      *zap.Logger

	processed metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewDispatcher creates a dispatcher from the moderation settings
func NewDispatcher(store Store, cfg *config.ModerationConfig) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Dispatcher{
		store:       store,
		handlers:    make(map[string]Handler),
		dead:        make(map[string]DeadHandler),
		workers:     workers,
		poll:        cfg.PollInterval,
		lease:       cfg.TaskLease,
		maxAttempts: maxAttempts,
		backoff:     cfg.RetryBackoff,
		now:         time.Now,
		wake:        make(chan struct{}, 1),
		logger:      logging.WithComponent("outbox"),
		processed:   telemetry.Counter("agora_outbox_tasks_total", "Outbox tasks settled by kind and result"),
		duration:    telemetry.Histogram("agora_outbox_task_duration_seconds", "Outbox task handler latency"),
	}
}

// Register binds a handler to a task kind
func (d *Dispatcher) Register(kind string, h Handler) {
	d.handlers[kind] = h
}

// RegisterDead binds a dead-letter hook to a task kind
func (d *Dispatcher) RegisterDead(kind string, h DeadHandler) {
	d.dead[kind] = h
}

// Notify wakes the dispatcher ahead of the next poll. It never blocks.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Start polls until ctx is cancelled. In-flight tasks finish before it returns.
func (d *Dispatcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	d.logger.Info("outbox dispatcher started",
		zap.Int("workers", d.workers),
		zap.Duration("poll_interval", d.poll),
		zap.Duration("lease", d.lease),
	)

	for {
		for {
			n, err := d.RunOnce(ctx)
			if err != nil {
				d.logger.Error("outbox poll failed", zap.Error(err))
				break
			}
			// a full batch means more work may be waiting
			if n < d.workers || ctx.Err() != nil {
				break
			}
		}

		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return nil
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// RunOnce claims one batch, runs it and returns the number of tasks claimed
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	if ctx.Err() != nil {
		return 0, nil
	}

	now := d.now()
	tasks, err := d.store.ClaimTasks(ctx, now, now.Add(-d.lease), d.workers)
	if err != nil {
		return 0, fmt.Errorf("failed to claim tasks: %w", err)
	}

	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}

		go func(t *models.Task) {
			defer wg.Done()
			defer func() { <-sem }()
			d.process(context.WithoutCancel(ctx), t)
		}(task)
	}
	wg.Wait()

	return len(tasks), nil
}

func (d *Dispatcher) process(ctx context.Context, task *models.Task) {
	ctx, span := telemetry.StartSpan(ctx, "outbox.task")
	defer span.End()
	span.SetAttributes(
		attribute.String("task_id", task.ID),
		attribute.String("kind", task.Kind),
		attribute.Int("attempt", task.Attempts),
	)

	logger := logging.FromContext(ctx, d.logger).With(
		zap.String("task_id", task.ID),
		zap.String("kind", task.Kind),
		zap.Int("attempt", task.Attempts),
	)

	handler, ok := d.handlers[task.Kind]
	if !ok {
		d.settle(ctx, logger, task, "dead", d.store.KillTask(ctx, task.ID, "no handler for kind "+task.Kind))
		return
	}
	if task.Attempts > d.maxAttempts {
		d.kill(ctx, logger, task, "lease expired after final attempt")
		return
	}

	start := time.Now()
	err := d.safeRun(ctx, handler, task)
	d.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("kind", task.Kind)))

	switch {
	case err == nil:
		d.settle(ctx, logger, task, "done", d.store.CompleteTask(ctx, task.ID))
	case errors.Is(err, ErrBadPayload) || task.Attempts >= d.maxAttempts:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("task failed permanently", zap.Error(err))
		d.kill(ctx, logger, task, err.Error())
	default:
		span.RecordError(err)
		retryAt := d.now().Add(d.backoff * time.Duration(task.Attempts))
		logger.Warn("task failed, scheduling retry", zap.Error(err), zap.Time("retry_at", retryAt))
		d.settle(ctx, logger, task, "retry", d.store.RetryTask(ctx, task.ID, err.Error(), retryAt))
	}
}

// kill marks the task dead and runs the kind's dead-letter hook. When the kill
// cannot be stored the hook waits for the next claim of the task.
func (d *Dispatcher) kill(ctx context.Context, logger *zap.Logger, task *models.Task, reason string) {
	err := d.store.KillTask(ctx, task.ID, reason)
	d.settle(ctx, logger, task, "dead", err)
	if err != nil {
		return
	}
	h, ok := d.dead[task.Kind]
	if !ok {
		return
	}
	if err := d.safeRun(ctx, Handler(h), task); err != nil {
		logger.Error("dead-letter hook failed", zap.Error(err))
	}
}

func (d *Dispatcher) safeRun(ctx context.Context, h Handler, task *models.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, task)
}

func (d *Dispatcher) settle(ctx context.Context, logger *zap.Logger, task *models.Task, result string, err error) {
	d.processed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", task.Kind),
		attribute.String("result", result),
	))
	if err != nil {
		// the lease will expire and the task is claimed again
		logger.Error("failed to settle task", zap.String("result", result), zap.Error(err))
	}
}
