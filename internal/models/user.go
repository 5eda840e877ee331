package models

import "time"

// Role is a user's privilege level
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User represents a community member and their posting state
type User struct {
	ID          string    `gorm:"type:varchar(36);primaryKey;column:id"`
	Name        string    `gorm:"type:varchar(64);not null;column:name"`
	Role        Role      `gorm:"type:varchar(16);not null;default:user;column:role"`
	RejectCount int       `gorm:"not null;default:0;column:reject_count"`
	CanPost     bool      `gorm:"not null;column:can_post"`
	InviteCode  string    `gorm:"type:varchar(64);column:invite_code"`
	CreatedAt   time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// IsModerator reports whether the user may decide on moderation items
func (u *User) IsModerator() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}

// Invite is a single-use invite code
type Invite struct {
	ID        string     `gorm:"type:varchar(36);primaryKey;column:id"`
	Code      string     `gorm:"type:varchar(64);uniqueIndex;not null;column:code"`
	Enabled   bool       `gorm:"not null;column:enabled"`
	UsedBy    *string    `gorm:"type:varchar(36);column:used_by"`
	UsedAt    *time.Time `gorm:"column:used_at"`
	CreatedAt time.Time  `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Invite
func (Invite) TableName() string {
	return "invites"
}
