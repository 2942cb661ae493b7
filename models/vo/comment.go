package vo

import (
	"time"

	"github.com/Xushengqwer/comment_service/models/entities"
)

// CommentAuthorVO 是评论作者的展示结构。
type CommentAuthorVO struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Homepage string `json:"homepage,omitempty"`
}

// CommentAttachmentVO 是评论附件的展示结构。
// - 处理完成后 URL 非空，前端优先展示 URL，Data 仅在未处理完成时兜底使用。
type CommentAttachmentVO struct {
	Data         string `json:"data,omitempty"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mimeType"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	URL          string `json:"url,omitempty"`
	Processed    bool   `json:"processed"`
}

// CommentVO 是单条评论的展示结构。
// - ParentID 为空表示根评论；层级结构由客户端按 ParentID 自行重建，
//   服务端的读取契约始终是扁平列表。
type CommentVO struct {
	ID         uint64               `json:"id"`
	PostID     string               `json:"postId"`
	ParentID   *uint64              `json:"parentId,omitempty"`
	Content    string               `json:"content"`
	Author     CommentAuthorVO      `json:"author"`
	Attachment *CommentAttachmentVO `json:"attachment,omitempty"`
	Votes      int                  `json:"votes"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

// CommentsPageVO 是分页查询的聚合响应。
// - Comments 仅包含当前页的根评论；AllComments 附带该帖子的全部评论扁平列表，
//   让客户端无需逐条回复再次请求即可重建完整评论树。
type CommentsPageVO struct {
	Comments    []*CommentVO `json:"comments"`
	AllComments []*CommentVO `json:"allComments,omitempty"`
	TotalCount  int64        `json:"totalCount"`
	Page        int          `json:"page"`
	Limit       int          `json:"limit"`
	TotalPages  int          `json:"totalPages"`
}

// FromCommentEntity 将评论实体转换为展示结构。
func FromCommentEntity(c *entities.Comment) *CommentVO {
	if c == nil {
		return nil
	}
	v := &CommentVO{
		ID:       c.ID,
		PostID:   c.PostID,
		ParentID: c.ParentID,
		Content:  c.Content,
		Author: CommentAuthorVO{
			UserID:   c.Author.UserID,
			Username: c.Author.UserName,
			Email:    c.Author.Email,
			Homepage: c.Author.Homepage,
		},
		Votes:     c.Votes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.Attachment.IsPresent() {
		v.Attachment = &CommentAttachmentVO{
			Data:         c.Attachment.Data,
			Filename:     c.Attachment.FileName,
			MimeType:     c.Attachment.MimeType,
			OriginalName: c.Attachment.OriginalName,
			Size:         c.Attachment.Size,
			URL:          c.Attachment.URL,
			Processed:    c.Attachment.Processed,
		}
	}
	return v
}

// FromCommentEntities 批量转换评论实体。
func FromCommentEntities(comments []*entities.Comment) []*CommentVO {
	vos := make([]*CommentVO, 0, len(comments))
	for _, c := range comments {
		vos = append(vos, FromCommentEntity(c))
	}
	return vos
}
