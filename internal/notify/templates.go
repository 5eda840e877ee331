package notify

import (
	"fmt"
	"unicode/utf8"

	"github.com/agora-community/agora/internal/models"
)

// DefaultRejectReason is used when the classifier rejects without a reason
const DefaultRejectReason = "内容可能违反社区规范"

const commentPreviewRunes = 60

// Decision is a moderator verdict as it appears in notification templates
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionHide    Decision = "hide"
)

// Subject describes the record a template talks about
type Subject struct {
	Type      models.TargetType
	AuthorID  string
	PostID    string
	CommentID string
	Title     string
	Body      string
	Edited    bool
}

func (s Subject) message(title, body string) Message {
	return Message{
		UserID:     s.AuthorID,
		Title:      title,
		Body:       body,
		Type:       models.MessageSystem,
		TargetType: s.Type,
		PostID:     s.PostID,
		CommentID:  s.CommentID,
	}
}

func reasonNote(reason string) string {
	if reason == "" {
		return ""
	}
	return "原因：" + reason
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= commentPreviewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:commentPreviewRunes]) + "..."
}

func commentLabel(body string) string {
	if p := preview(body); p != "" {
		return "你的评论「" + p + "」"
	}
	return "你的评论"
}

// ClassificationRejected tells the author the classifier rejected their content
func ClassificationRejected(s Subject, reason string) Message {
	if reason == "" {
		reason = DefaultRejectReason
	}
	if s.Type == models.TargetComment {
		return s.message("评论审核未通过", "你的评论未通过审核，可申请复查。"+reasonNote(reason))
	}
	verb := "未通过审核"
	if s.Edited {
		verb = "修改后未通过审核"
	}
	return s.message("内容审核未通过", fmt.Sprintf("你的帖子《%s》%s，可申请复查。%s", s.Title, verb, reasonNote(reason)))
}

// ClassificationFailed tells the author classification could not complete
func ClassificationFailed(s Subject) Message {
	if s.Type == models.TargetComment {
		return s.message("评论审核暂时失败", "你的评论暂时无法完成审核，可申请复查。")
	}
	prefix := ""
	if s.Edited {
		prefix = "修改后"
	}
	return s.message("内容审核暂时失败", fmt.Sprintf("你的帖子《%s》%s暂时无法完成审核，可申请复查。", s.Title, prefix))
}

// ModeratorDecision tells the author what a moderator decided
func ModeratorDecision(s Subject, decision Decision, reason string) Message {
	note := reasonNote(reason)
	if s.Type == models.TargetComment {
		label := commentLabel(s.Body)
		switch decision {
		case DecisionApprove:
			return s.message("评论已通过复查", label+"已通过人工审核。")
		case DecisionReject:
			return s.message("评论复查未通过", label+"复查未通过。"+note)
		default:
			return s.message("评论已被隐藏", label+"已被隐藏。"+note)
		}
	}
	switch decision {
	case DecisionApprove:
		return s.message("内容已通过复查", fmt.Sprintf("你的帖子《%s》已通过人工审核。", s.Title))
	case DecisionReject:
		return s.message("内容复查未通过", fmt.Sprintf("你的帖子《%s》复查未通过。%s", s.Title, note))
	default:
		return s.message("内容已被隐藏", fmt.Sprintf("你的帖子《%s》已被隐藏。%s", s.Title, note))
	}
}

// NewComment tells a post author someone commented
func NewComment(postAuthorID, commenterID, postID, commentID, body string) Message {
	return Message{
		UserID:     postAuthorID,
		Title:      "收到评论",
		Body:       body,
		Type:       models.MessageComment,
		ActorID:    commenterID,
		TargetType: models.TargetComment,
		PostID:     postID,
		CommentID:  commentID,
	}
}

// NewLike tells a post author someone liked their post
func NewLike(postAuthorID, likerID, postID string) Message {
	return Message{
		UserID:     postAuthorID,
		Title:      "收到点赞",
		Type:       models.MessageLike,
		ActorID:    likerID,
		TargetType: models.TargetPost,
		PostID:     postID,
	}
}
