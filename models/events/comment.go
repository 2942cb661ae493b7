// Package events 定义跨消息队列边界传输的事件结构。
//
// 每种消息都是字段集显式的结构体，消费端统一通过 Valid 在边界处校验，
// 而不是隐式信任载荷。
package events

import "time"

// 广播信封的 Type 判别值。
const (
	TypeNewComment     = "NEW_COMMENT"
	TypeUpdatedComment = "UPDATED_COMMENT"
	TypeDeletedComment = "DELETED_COMMENT"
)

// AuthorData 是事件载荷中的作者快照。
type AuthorData struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Homepage string `json:"homepage,omitempty"`
}

// AttachmentData 是事件载荷中的附件内容。
type AttachmentData struct {
	Data         string `json:"data"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mimeType"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	// URL 仅在附件后处理完成后的广播中携带。
	URL string `json:"url,omitempty"`
}

// CommentCreatedEvent 对应点对点队列 comment.created。
// 由评论引擎在持久化成功后发布，异步 worker 消费并派生后续副作用。
type CommentCreatedEvent struct {
	EventID   string    `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`

	CommentID  uint64          `json:"commentId"`
	PostID     string          `json:"postId"`
	ParentID   *uint64         `json:"parentId,omitempty"` // nil 表示根评论
	Content    string          `json:"content"`
	Author     AuthorData      `json:"author"`
	Attachment *AttachmentData `json:"attachment,omitempty"`
}

// Valid 校验必备字段。不合法的消息在消费端直接丢弃（记日志）。
func (e *CommentCreatedEvent) Valid() bool {
	return e.CommentID != 0 && e.PostID != "" && e.Author.UserID != ""
}

// CommentDeletedEvent 对应点对点队列 comment.deleted。
type CommentDeletedEvent struct {
	EventID   string    `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`

	CommentID uint64     `json:"commentId"`
	PostID    string     `json:"postId"`
	Author    AuthorData `json:"author"`
}

// Valid 校验必备字段。
func (e *CommentDeletedEvent) Valid() bool {
	return e.CommentID != 0 && e.PostID != ""
}

// FileProcessingEvent 对应点对点队列 file.processing。
// 由 comment.created 的消费者在评论携带附件时派生。
type FileProcessingEvent struct {
	EventID   string    `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`

	CommentID  uint64         `json:"commentId"`
	Attachment AttachmentData `json:"attachment"`
}

// Valid 校验必备字段。
func (e *FileProcessingEvent) Valid() bool {
	return e.CommentID != 0 && e.Attachment.Filename != ""
}

// EmailNotificationEvent 对应点对点队列 email.notification。
// 回复创建时通知父评论作者；收件人地址由消费端按 ParentID 反查。
type EmailNotificationEvent struct {
	EventID   string    `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`

	Type      string     `json:"type"` // 目前仅 "reply_notification"
	CommentID uint64     `json:"commentId"`
	ParentID  uint64     `json:"parentId"`
	PostID    string     `json:"postId"`
	Author    AuthorData `json:"author"` // 回复者（非收件人）
}

// Valid 校验必备字段。
func (e *EmailNotificationEvent) Valid() bool {
	return e.CommentID != 0 && e.ParentID != 0 && e.PostID != ""
}

// BroadcastCommentData 是广播信封中携带的评论数据。
// DELETED_COMMENT 只保证 ID 与 PostID 有效。
type BroadcastCommentData struct {
	ID         uint64          `json:"id"`
	PostID     string          `json:"postId"`
	ParentID   *uint64         `json:"parentId,omitempty"`
	Content    string          `json:"content,omitempty"`
	Author     *AuthorData     `json:"author,omitempty"`
	Attachment *AttachmentData `json:"attachment,omitempty"`
}

// BroadcastEnvelope 是 comment.events 交换机上的统一信封。
// Type 为判别字段，决定消费端转发到实时推送器的哪一个广播方法。
type BroadcastEnvelope struct {
	EventID   string    `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`

	Type string               `json:"type"`
	Data BroadcastCommentData `json:"data"`
}

// Valid 校验判别值与必备字段。
func (e *BroadcastEnvelope) Valid() bool {
	switch e.Type {
	case TypeNewComment, TypeUpdatedComment, TypeDeletedComment:
		return e.Data.ID != 0 && e.Data.PostID != ""
	default:
		return false
	}
}
