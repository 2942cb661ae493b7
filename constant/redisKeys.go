package constant

import (
	"strings"
	"time"
)

// Redis Key 相关常量 (导出)
//
// 评论缓存的 Key 统一以帖子为分组单位，任何对某个帖子评论集合的写入
// （创建评论、创建回复、级联删除）都会按 CommentCacheInvalidatePatterns
// 返回的模式批量删除该帖子的全部缓存条目。
const (
	// --- 评论读缓存 Key 前缀 ---

	// CommentListCachePrefix 是帖子评论扁平列表缓存的 Key 前缀。
	// 示例 Key: "comments:post:123:all"
	// Redis 类型: String (JSON 序列化后的评论列表)
	CommentListCachePrefix = "comments:post:"

	// CommentPageCachePrefix 是分页响应缓存的 Key 前缀。
	// 完整 Key 由 帖子ID、页码、每页数量 组成的复合键。
	// 示例 Key: "comments:paginated:123:2:25"
	// Redis 类型: String (JSON 序列化后的 CommentsPageVO)
	CommentPageCachePrefix = "comments:paginated:"

	// CommentCountCachePrefix 是帖子根评论总数缓存的 Key 前缀。
	// 示例 Key: "comments:count:123"
	// Redis 类型: String (十进制整数)
	CommentCountCachePrefix = "comments:count:"

	// --- 统计计数 Key (全局/维度前缀) ---

	// StatsTotalCommentsKey 是全局评论总数计数器。
	// Redis 类型: String，INCR/DECR 原子更新。
	StatsTotalCommentsKey = "stats:comments:total"

	// StatsCommentsDayPrefix 是按天统计的评论数前缀，示例 Key: "stats:comments:day:2025-06-09"。
	StatsCommentsDayPrefix = "stats:comments:day:"

	// StatsCommentsWeekPrefix 是按周统计的评论数前缀（以周一日期为键）。
	StatsCommentsWeekPrefix = "stats:comments:week:"

	// StatsCommentsMonthPrefix 是按月统计的评论数前缀，示例 Key: "stats:comments:month:2025-06"。
	StatsCommentsMonthPrefix = "stats:comments:month:"

	// StatsPostPrefix 是按帖子维度统计的前缀。
	// 评论数示例 Key: "stats:post:123:comments"；浏览量示例 Key: "stats:post:123:views"。
	StatsPostPrefix = "stats:post:"

	// StatsUserPrefix 是按用户维度统计的前缀。
	// 示例 Key: "stats:user:u1:comments"、"stats:user:u1:comments:day:2025-06-09"。
	StatsUserPrefix = "stats:user:"

	// StatsTopCommentersKey 是评论者排行榜。
	// Redis 类型: Sorted Set，member 为用户名，score 为其累计评论数。
	StatsTopCommentersKey = "stats:top_commenters"

	// StatsPopularPostsKey 是帖子热度排行榜。
	// Redis 类型: Sorted Set，member 为帖子 ID，score 为其累计评论数。
	StatsPopularPostsKey = "stats:popular_posts"

	// PopularPostsSnapshotKey 是定时任务生成的热门帖子快照缓存 Key。
	// Redis 类型: String (JSON 序列化后的排行榜条目列表)。
	PopularPostsSnapshotKey = "popular:posts:snapshot"

	// --- 限流 Key ---

	// RateLimitPrefix 是滑动窗口限流记录的 Key 前缀。
	// 示例 Key: "rate_limit:comment:create:u1"
	// Redis 类型: Sorted Set，member 为请求唯一标识，score 为请求时间戳(毫秒)。
	RateLimitPrefix = "rate_limit:"
)

// 缓存 TTL 常量
//
// 三级 TTL 的梯度设计：分页响应聚合了列表与计数两个子缓存，波动最频繁，
// TTL 最短；根评论计数只在根评论增删时变化，TTL 最长。
const (
	// CommentListCacheTTL 是扁平评论列表缓存的有效期。
	CommentListCacheTTL = 5 * time.Minute

	// CommentPageCacheTTL 是分页响应缓存的有效期。
	CommentPageCacheTTL = 3 * time.Minute

	// CommentCountCacheTTL 是根评论计数缓存的有效期。
	CommentCountCacheTTL = 10 * time.Minute

	// PopularPostsSnapshotTTL 是热门帖子快照缓存的有效期。
	PopularPostsSnapshotTTL = 10 * time.Minute

	// StatsDailyKeyTTL 是按天统计 Key 的保留时长。
	StatsDailyKeyTTL = 7 * 24 * time.Hour

	// StatsWeeklyKeyTTL 是按周统计 Key 的保留时长。
	StatsWeeklyKeyTTL = 30 * 24 * time.Hour

	// UniqueVisitorsKeyTTL 是帖子每日独立访客集合的保留时长。
	UniqueVisitorsKeyTTL = 7 * 24 * time.Hour
)

// globMetaEscaper 转义 Redis glob 模式的元字符。
// 帖子 ID 来自外部输入，含 *、?、[ 等字符时必须按字面量匹配，
// 否则 SCAN 匹配不到自己的 Key，失效操作静默漏删。
var globMetaEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

// CommentCacheInvalidatePatterns 返回使指定帖子全部评论缓存失效所需删除的 Key 模式。
// 包括：扁平列表、所有分页响应、根评论计数。
// 模式用于 SCAN + DEL，调用方应在持久化写入成功之后、响应返回之前同步执行。
func CommentCacheInvalidatePatterns(postID string) []string {
	escaped := globMetaEscaper.Replace(postID)
	return []string{
		CommentListCachePrefix + escaped + ":*",
		CommentPageCachePrefix + escaped + ":*",
		CommentCountCachePrefix + escaped,
	}
}
