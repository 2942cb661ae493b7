package dto

// CommentAttachmentDTO 定义了附件的上传数据结构。
// - Data 为 base64 编码内容，大小限制由接入层（请求体大小）约束。
type CommentAttachmentDTO struct {
	Data         string `json:"data" binding:"required"`
	Filename     string `json:"filename" binding:"required,max=255"`
	MimeType     string `json:"mimeType" binding:"required,max=100"`
	OriginalName string `json:"originalName" binding:"required,max=255"`
	Size         int64  `json:"size" binding:"required,gt=0"`
}

// CreateCommentRequest 定义了创建根评论的请求数据结构
// - 添加了 binding 标签用于输入验证；作者信息随请求冗余传入（网关已完成认证）
type CreateCommentRequest struct {
	PostID   string `json:"postId" binding:"required,max=64"`            // 帖子ID，必填
	Content  string `json:"content" binding:"required"`                  // 评论内容，必填（长度上限在服务层按 rune 校验）
	UserID   string `json:"userId" binding:"required,max=64"`            // 作者用户ID，必填
	Username string `json:"username" binding:"required,max=100"`         // 作者用户名，必填
	Email    string `json:"email" binding:"required,email"`              // 作者邮箱，必填
	Homepage string `json:"homepage" binding:"omitempty,url|uri,max=255"` // 作者主页，可选

	Attachment *CommentAttachmentDTO `json:"attachment" binding:"omitempty"` // 附件，可选
}

// CreateReplyRequest 定义了创建回复的请求数据结构
// - 与 CreateCommentRequest 相比多出必填的 ParentID
type CreateReplyRequest struct {
	PostID   string `json:"postId" binding:"required,max=64"`
	ParentID uint64 `json:"parentId" binding:"required,gt=0"` // 父评论ID，必填
	Content  string `json:"content" binding:"required"`
	UserID   string `json:"userId" binding:"required,max=64"`
	Username string `json:"username" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Homepage string `json:"homepage" binding:"omitempty,url|uri,max=255"`

	Attachment *CommentAttachmentDTO `json:"attachment" binding:"omitempty"`
}

// ListCommentsRequest 定义了查询帖子评论扁平列表的请求数据结构。
type ListCommentsRequest struct {
	PostID string `form:"postId" binding:"required,max=64"` // 帖子ID，必填
}

// PaginatedCommentsRequest 定义了分页查询根评论的请求数据结构。
// - Page/Limit 缺省值 (1/25) 在控制器绑定前填充。
type PaginatedCommentsRequest struct {
	PostID string `form:"postId" binding:"required,max=64"`
	Page   int    `form:"page,default=1" binding:"omitempty,gte=1"`
	Limit  int    `form:"limit,default=25" binding:"omitempty,gte=1,lte=100"`
}
