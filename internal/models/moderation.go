package models

// ModerationStatus is the visibility state of a post or comment
type ModerationStatus string

const (
	StatusPendingAI     ModerationStatus = "pending_ai"
	StatusPendingReview ModerationStatus = "pending_review"
	StatusActive        ModerationStatus = "active"
	StatusHidden        ModerationStatus = "hidden"
	StatusRejected      ModerationStatus = "rejected"
)

// Valid reports whether s is a known status
func (s ModerationStatus) Valid() bool {
	switch s {
	case StatusPendingAI, StatusPendingReview, StatusActive, StatusHidden, StatusRejected:
		return true
	}
	return false
}

// TargetType identifies the kind of moderated record
type TargetType string

const (
	TargetPost    TargetType = "post"
	TargetComment TargetType = "comment"
)

// Valid reports whether t is post or comment
func (t TargetType) Valid() bool {
	return t == TargetPost || t == TargetComment
}
