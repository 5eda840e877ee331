// Package outbox persists background work next to the records that need it
// and dispatches it with at-least-once delivery.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agora-community/agora/internal/models"
)

// KindClassify runs AI classification over a newly submitted or edited record
const KindClassify = "classify"

// ClassifyPayload identifies the record to classify
type ClassifyPayload struct {
	TargetType models.TargetType `json:"targetType"`
	TargetID   string            `json:"targetId"`
	Edited     bool              `json:"edited,omitempty"`
}

// NewTask builds a pending task ready to be inserted
func NewTask(kind string, payload interface{}) (*models.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	now := time.Now().UTC()
	return &models.Task{
		ID:          uuid.NewString(),
		Kind:        kind,
		Payload:     string(raw),
		Status:      models.TaskPending,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NewClassifyTask builds a classify task for a post or comment
func NewClassifyTask(typ models.TargetType, id string, edited bool) (*models.Task, error) {
	return NewTask(KindClassify, ClassifyPayload{TargetType: typ, TargetID: id, Edited: edited})
}

// Classifier is the moderation entry point driven by classify tasks
type Classifier interface {
	Classify(ctx context.Context, typ models.TargetType, id string, edited bool) error
}

// ClassificationFailer settles a record whose classify task died
type ClassificationFailer interface {
	FailClassification(ctx context.Context, typ models.TargetType, id string, edited bool) error
}

func decodeClassify(task *models.Task) (ClassifyPayload, error) {
	var p ClassifyPayload
	if err := json.Unmarshal([]byte(task.Payload), &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if !p.TargetType.Valid() || p.TargetID == "" {
		return p, fmt.Errorf("%w: missing target", ErrBadPayload)
	}
	return p, nil
}

// ClassifyHandler decodes a classify task and runs it
func ClassifyHandler(c Classifier) Handler {
	return func(ctx context.Context, task *models.Task) error {
		p, err := decodeClassify(task)
		if err != nil {
			return err
		}
		return c.Classify(ctx, p.TargetType, p.TargetID, p.Edited)
	}
}

// ClassifyDeadHandler moves the record of a dead classify task out of
// pending_ai
func ClassifyDeadHandler(f ClassificationFailer) DeadHandler {
	return func(ctx context.Context, task *models.Task) error {
		p, err := decodeClassify(task)
		if err != nil {
			return err
		}
		return f.FailClassification(ctx, p.TargetType, p.TargetID, p.Edited)
	}
}
