package models

import "time"

// Post represents a top-level community post
type Post struct {
	ID               string           `gorm:"type:varchar(36);primaryKey;column:id"`
	AuthorID         string           `gorm:"type:varchar(36);not null;index;column:author_id"`
	Title            string           `gorm:"type:varchar(255);not null;column:title"`
	Body             string           `gorm:"type:text;not null;column:body"`
	Tags             []string         `gorm:"type:jsonb;serializer:json;column:tags"`
	Cover            string           `gorm:"type:text;column:cover"`
	ModerationStatus ModerationStatus `gorm:"type:varchar(20);not null;index;column:moderation_status"`
	AIReason         string           `gorm:"type:text;column:ai_reason"`
	ReviewRequested  bool             `gorm:"not null;default:false;column:review_requested"`
	ReportCount      int              `gorm:"not null;default:0;column:report_count"`
	LikeCount        int              `gorm:"not null;default:0;column:like_count"`
	CommentCount     int              `gorm:"not null;default:0;column:comment_count"`
	ViewCount        int              `gorm:"not null;default:0;column:view_count"`
	HotScore         float64          `gorm:"not null;default:0;index;column:hot_score"`
	CreatedAt        time.Time        `gorm:"not null;index;column:created_at"`
	UpdatedAt        time.Time        `gorm:"not null;column:updated_at"`
	EditedAt         time.Time        `gorm:"not null;column:edited_at"`

	Author *User `gorm:"foreignKey:AuthorID;references:ID"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

// Comment represents a reply to a post
type Comment struct {
	ID               string           `gorm:"type:varchar(36);primaryKey;column:id"`
	PostID           string           `gorm:"type:varchar(36);not null;index;column:post_id"`
	AuthorID         string           `gorm:"type:varchar(36);not null;index;column:author_id"`
	Body             string           `gorm:"type:text;not null;column:body"`
	ModerationStatus ModerationStatus `gorm:"type:varchar(20);not null;index;column:moderation_status"`
	AIReason         string           `gorm:"type:text;column:ai_reason"`
	ReviewRequested  bool             `gorm:"not null;default:false;column:review_requested"`
	ReportCount      int              `gorm:"not null;default:0;column:report_count"`
	CreatedAt        time.Time        `gorm:"not null;index;column:created_at"`
	UpdatedAt        time.Time        `gorm:"not null;column:updated_at"`

	Author *User `gorm:"foreignKey:AuthorID;references:ID"`
	Post   *Post `gorm:"foreignKey:PostID;references:ID"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "comments"
}

// Like is a user's like on a post. LikeKey is "<user>_<post>".
type Like struct {
	LikeKey   string    `gorm:"type:varchar(80);primaryKey;column:like_key"`
	UserID    string    `gorm:"type:varchar(36);not null;column:user_id"`
	PostID    string    `gorm:"type:varchar(36);not null;index;column:post_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Like
func (Like) TableName() string {
	return "likes"
}

// LikeKey builds the unique key of a like
func LikeKey(userID, postID string) string {
	return userID + "_" + postID
}

// Follow is a user following another user's posts
type Follow struct {
	FollowerID string    `gorm:"type:varchar(36);primaryKey;column:follower_id"`
	FollowedID string    `gorm:"type:varchar(36);primaryKey;index;column:followed_id"`
	CreatedAt  time.Time `gorm:"not null;column:created_at"`

	Followed *User `gorm:"foreignKey:FollowedID;references:ID"`
}

// TableName specifies the table name for Follow
func (Follow) TableName() string {
	return "follows"
}
