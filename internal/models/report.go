package models

import "time"

// ReportStatus is the lifecycle state of a report
type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportReviewed ReportStatus = "reviewed"
)

// Report is a user complaint against a post or comment
type Report struct {
	ID           string       `gorm:"type:varchar(36);primaryKey;column:id"`
	TargetType   TargetType   `gorm:"type:varchar(16);not null;index:idx_reports_target;column:target_type"`
	TargetID     string       `gorm:"type:varchar(36);not null;index:idx_reports_target;column:target_id"`
	ReporterID   string       `gorm:"type:varchar(36);not null;column:reporter_id"`
	Reason       string       `gorm:"type:varchar(255);not null;column:reason"`
	ReasonDetail string       `gorm:"type:text;column:reason_detail"`
	Status       ReportStatus `gorm:"type:varchar(16);not null;default:pending;column:status"`
	CreatedAt    time.Time    `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Report
func (Report) TableName() string {
	return "reports"
}
