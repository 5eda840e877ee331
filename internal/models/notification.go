package models

import "time"

// MessageType classifies a notification
type MessageType string

const (
	MessageSystem  MessageType = "system"
	MessageLike    MessageType = "like"
	MessageComment MessageType = "comment"
)

// NotificationStatus tracks what the recipient did with a notification
type NotificationStatus string

const (
	NotificationUnread   NotificationStatus = "unread"
	NotificationRead     NotificationStatus = "read"
	NotificationActioned NotificationStatus = "actioned"
	NotificationHidden   NotificationStatus = "hidden"
)

// Notification is a message delivered to a user's inbox
type Notification struct {
	ID          string             `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	UserID      string             `gorm:"type:varchar(36);not null;index;column:user_id" json:"userId"`
	MessageType MessageType        `gorm:"type:varchar(16);not null;default:system;column:message_type" json:"messageType"`
	ActorID     string             `gorm:"type:varchar(36);column:actor_id" json:"actorId,omitempty"`
	Title       string             `gorm:"type:varchar(255);not null;column:title" json:"title"`
	Body        string             `gorm:"type:text;column:body" json:"body"`
	TargetType  TargetType         `gorm:"type:varchar(16);column:target_type" json:"targetType,omitempty"`
	PostID      string             `gorm:"type:varchar(36);column:post_id" json:"postId,omitempty"`
	CommentID   string             `gorm:"type:varchar(36);column:comment_id" json:"commentId,omitempty"`
	Status      NotificationStatus `gorm:"type:varchar(16);not null;default:unread;column:status" json:"status"`
	CreatedAt   time.Time          `gorm:"not null;index;column:created_at" json:"createdAt"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}
