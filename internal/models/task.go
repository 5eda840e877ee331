package models

import "time"

// TaskStatus is the dispatch state of an outbox task
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskDone       TaskStatus = "done"
	TaskDead       TaskStatus = "dead"
)

// Task is a persisted unit of background work
type Task struct {
	ID          string     `gorm:"type:varchar(36);primaryKey;column:id"`
	Kind        string     `gorm:"type:varchar(32);not null;column:kind"`
	Payload     string     `gorm:"type:jsonb;not null;column:payload"`
	Status      TaskStatus `gorm:"type:varchar(16);not null;index:idx_tasks_due;column:status"`
	Attempts    int        `gorm:"not null;default:0;column:attempts"`
	LastError   string     `gorm:"type:text;column:last_error"`
	AvailableAt time.Time  `gorm:"not null;index:idx_tasks_due;column:available_at"`
	LockedAt    *time.Time `gorm:"column:locked_at"`
	CreatedAt   time.Time  `gorm:"not null;column:created_at"`
	UpdatedAt   time.Time  `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Task
func (Task) TableName() string {
	return "outbox_tasks"
}

// All lists every model for schema migration in tests and auto-migrate mode
func All() []interface{} {
	return []interface{}{
		&User{}, &Invite{}, &Post{}, &Comment{}, &Like{}, &Follow{}, &Report{}, &Notification{}, &Task{},
	}
}
