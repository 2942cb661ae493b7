package constant

// 服务标识相关常量 (导出)
const (
	// ServiceName 是本服务在注册中心 / 链路追踪中的名称。
	ServiceName = "comment_service"

	// ServiceVersion 是当前服务版本号，随发布更新。
	ServiceVersion = "1.0.0"
)

// 评论内容相关常量
const (
	// CommentContentMaxLen 是评论内容允许的最大字符数（按 rune 计）。
	// 超出该长度的内容在服务层直接拒绝，不会触发任何持久化或副作用。
	CommentContentMaxLen = 4000

	// DefaultPageLimit 是分页查询根评论的缺省每页数量。
	DefaultPageLimit = 25

	// MaxPageLimit 是分页查询允许的每页数量上限。
	MaxPageLimit = 100
)

// PopularCommentsCacheCronSpec 是热门帖子快照缓存刷新任务的 cron 表达式。
// 默认每 5 分钟执行一次，与快照缓存 TTL (PopularPostsSnapshotTTL) 配合，
// 保证快照在过期前总能被新一轮任务刷新。
const PopularCommentsCacheCronSpec = "*/5 * * * *"
