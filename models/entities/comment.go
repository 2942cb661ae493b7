package entities

import (
	"github.com/Xushengqwer/go-common/models/entities"
)

// CommentAuthor 是评论作者的内嵌值对象。
// - 设计意图: 写入时从请求中冗余固化作者信息，读取时永不关联用户服务，
//   保证评论列表的读取是单表查询。
// - 注意: 该组字段写入后不随用户资料变更而更新，属于有意为之的快照语义。
type CommentAuthor struct {
	// 作者用户ID，透传自网关的不透明标识
	// - 类型: varchar(64)，加索引以支持按用户维度的统计查询
	UserID string `gorm:"column:author_user_id;type:varchar(64);not null;index" json:"userId"`

	// 作者用户名，展示用
	UserName string `gorm:"column:author_username;type:varchar(100);not null" json:"username"`

	// 作者邮箱，回复通知的收件地址
	Email string `gorm:"column:author_email;type:varchar(255);not null" json:"email"`

	// 作者主页，可选
	Homepage string `gorm:"column:author_homepage;type:varchar(255)" json:"homepage,omitempty"`
}

// CommentAttachment 是评论附件的内嵌值对象。
// - Data 保存原始 base64 载荷；异步 worker 处理完成后会将对象上传到 COS，
//   并回填 URL 与 Processed 标记。对象键由评论 ID 决定，因此重复处理同一条
//   file.processing 消息只会覆盖同一个对象，不会产生脏数据。
type CommentAttachment struct {
	// base64 编码的文件内容
	// - 类型: longtext，附件大小由接入层限制
	Data string `gorm:"column:attachment_data;type:longtext" json:"data,omitempty"`

	// 存储文件名（服务端生成）
	FileName string `gorm:"column:attachment_filename;type:varchar(255)" json:"filename,omitempty"`

	// MIME 类型，例如 "image/png"
	MimeType string `gorm:"column:attachment_mime_type;type:varchar(100)" json:"mimeType,omitempty"`

	// 用户上传时的原始文件名
	OriginalName string `gorm:"column:attachment_original_name;type:varchar(255)" json:"originalName,omitempty"`

	// 文件字节数
	Size int64 `gorm:"column:attachment_size;default:0" json:"size,omitempty"`

	// 处理完成后的公开访问 URL，由异步 worker 回填
	URL string `gorm:"column:attachment_url;type:varchar(512)" json:"url,omitempty"`

	// 是否已完成后处理
	Processed bool `gorm:"column:attachment_processed;default:false" json:"processed,omitempty"`
}

// IsPresent 判断附件是否存在。
// 内嵌值对象无法为 NULL，以 FileName 非空作为存在标记。
func (a *CommentAttachment) IsPresent() bool {
	return a != nil && a.FileName != ""
}

// Comment 评论实体
// - 使用场景: 帖子下的评论与任意深度的嵌套回复，同一 PostID 下的记录构成森林
// - 表名: comments (GORM 默认使用结构体名复数形式)
type Comment struct {
	entities.BaseModel // 嵌入自定义的 BaseModel，包含 ID, CreatedAt, UpdatedAt, DeletedAt

	// 所属帖子ID，不透明字符串，不做外键约束
	// - 类型: varchar(64)，加索引支撑按帖子查询整棵评论森林
	PostID string `gorm:"type:varchar(64);not null;index"`

	// 父评论ID，NULL 表示根评论
	// - 创建后不可变更，由此保证森林结构不可能成环
	// - 加索引支撑级联删除时的逐层子节点查找
	ParentID *uint64 `gorm:"index"`

	// 评论内容，markdown 文本，必填
	Content string `gorm:"type:text;not null"`

	// 作者快照，内嵌字段（列前缀 author_）
	Author CommentAuthor `gorm:"embedded"`

	// 附件，内嵌字段（列前缀 attachment_），可缺省
	Attachment CommentAttachment `gorm:"embedded"`

	// 票数计数器，核心范围内没有独立投票子系统，仅保留字段
	Votes int `gorm:"type:int;default:0"`
}

// IsRoot 判断是否为根评论（无父评论）。
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}
