package db

import (
	"context"
	"time"

	"github.com/agora-community/agora/internal/models"
)

// TaskRepository stores outbox tasks
type TaskRepository struct {
	*Repository
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(repo *Repository) *TaskRepository {
	return &TaskRepository{Repository: repo}
}

// ClaimTasks leases due and stale tasks. Each candidate is claimed with a
// conditional update on its status and attempts, so concurrent dispatchers
// never run the same attempt twice.
func (r *TaskRepository) ClaimTasks(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.Task, error) {
	now, staleBefore = now.UTC(), staleBefore.UTC()

	var candidates []*models.Task
	if err := r.db.WithContext(ctx).
		Where("(status = ? AND available_at <= ?) OR (status = ? AND locked_at < ?)",
			models.TaskPending, now, models.TaskProcessing, staleBefore).
		Order("available_at ASC").
		Limit(limit).
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	claimed := make([]*models.Task, 0, len(candidates))
	for _, t := range candidates {
		res := r.db.WithContext(ctx).Model(&models.Task{}).
			Where("id = ? AND status = ? AND attempts = ?", t.ID, t.Status, t.Attempts).
			Updates(map[string]interface{}{
				"status":    models.TaskProcessing,
				"locked_at": now,
				"attempts":  t.Attempts + 1,
			})
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		t.Status = models.TaskProcessing
		t.LockedAt = &now
		t.Attempts++
		claimed = append(claimed, t)
	}
	return claimed, nil
}

// EnqueueTask inserts a task outside of a record transaction
func (r *TaskRepository) EnqueueTask(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetTask retrieves a task by ID
func (r *TaskRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	found, err := r.first(ctx, &task, "id = ?", id)
	if err != nil || !found {
		return nil, err
	}
	return &task, nil
}

// CompleteTask marks a task done
func (r *TaskRepository) CompleteTask(ctx context.Context, id string) error {
	return r.settle(ctx, id, map[string]interface{}{"status": models.TaskDone, "locked_at": nil})
}

// RetryTask returns a task to pending until availableAt
func (r *TaskRepository) RetryTask(ctx context.Context, id, lastError string, availableAt time.Time) error {
	return r.settle(ctx, id, map[string]interface{}{
		"status":       models.TaskPending,
		"last_error":   lastError,
		"available_at": availableAt.UTC(),
		"locked_at":    nil,
	})
}

// KillTask marks a task dead
func (r *TaskRepository) KillTask(ctx context.Context, id, lastError string) error {
	return r.settle(ctx, id, map[string]interface{}{"status": models.TaskDead, "last_error": lastError, "locked_at": nil})
}

func (r *TaskRepository) settle(ctx context.Context, id string, cols map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(cols).Error
}
