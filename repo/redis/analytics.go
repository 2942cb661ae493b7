package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Xushengqwer/go-common/core"
	"github.com/redis/go-redis/v9"

	"github.com/Xushengqwer/comment_service/constant"
	"github.com/Xushengqwer/comment_service/models/vo"
)

// AnalyticsRepository 定义了评论统计累加器的操作接口。
// - 所有计数都存放在 Redis 中，按 全局/时间窗口/帖子/用户 四个维度累加，
//   另外维护两个 Sorted Set 排行榜（评论者、帖子热度）。
// - 统计是尽力而为的旁路数据：写入失败只记日志，绝不让主流程失败。
// - 时间窗口 Key（天/周/月）带保留期 TTL，自然滚动淘汰。
type AnalyticsRepository interface {
	// TrackCommentCreated 在评论创建成功后累加所有相关计数。
	// - username 进入评论者排行榜，postID 进入帖子热度排行榜。
	TrackCommentCreated(ctx context.Context, postID, userID, username string) error

	// TrackCommentDeleted 在评论删除成功后回退所有相关计数。
	// - 级联删除时每条被删除的评论（根与每个后代）各调用一次，
	//   userID/username 取自该条评论自己的作者，保证归因正确。
	TrackCommentDeleted(ctx context.Context, postID, userID, username string) error

	// TrackPageView 记录一次帖子浏览：累加浏览量并将访客加入当日独立访客集合。
	TrackPageView(ctx context.Context, postID, visitorID string) error

	// GetCommentStats 聚合返回全局评论统计视图。
	GetCommentStats(ctx context.Context) (*vo.CommentStatsVO, error)

	// GetTopCommenters 返回评论数最多的前 limit 名评论者。
	GetTopCommenters(ctx context.Context, limit int64) ([]vo.TopCommenterVO, error)

	// GetPopularPosts 返回评论数最多的前 limit 个帖子。
	GetPopularPosts(ctx context.Context, limit int64) ([]vo.PopularPostVO, error)

	// GetPostCommentCount 返回指定帖子的累计评论数。
	GetPostCommentCount(ctx context.Context, postID string) (int64, error)

	// GetUserCommentCount 返回指定用户的累计评论数。
	GetUserCommentCount(ctx context.Context, userID string) (int64, error)

	// GetUserCommentCountToday 返回指定用户今日的评论数。
	GetUserCommentCountToday(ctx context.Context, userID string) (int64, error)

	// GetPageViewStats 返回指定帖子的浏览统计。
	GetPageViewStats(ctx context.Context, postID string) (*vo.PageViewStatsVO, error)
}

// analyticsRepository 是 AnalyticsRepository 接口的 Redis 实现。
type analyticsRepository struct {
	redisClient *redis.Client
	logger      *core.ZapLogger
}

// NewAnalyticsRepository 是 analyticsRepository 的构造函数。
func NewAnalyticsRepository(redisClient *redis.Client, logger *core.ZapLogger) AnalyticsRepository {
	return &analyticsRepository{
		redisClient: redisClient,
		logger:      logger,
	}
}

// dayKeySuffix 返回按天统计的日期后缀，如 "2025-06-09"。
func dayKeySuffix(now time.Time) string {
	return now.Format("2006-01-02")
}

// weekKeySuffix 返回按周统计的后缀，取当周周一的日期，保证整周命中同一个 Key。
func weekKeySuffix(now time.Time) string {
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7 // 周日归入上周一开始的周
	}
	monday := now.AddDate(0, 0, -(weekday - 1))
	return monday.Format("2006-01-02")
}

// monthKeySuffix 返回按月统计的后缀，如 "2025-06"。
func monthKeySuffix(now time.Time) string {
	return now.Format("2006-01")
}

func (r *analyticsRepository) TrackCommentCreated(ctx context.Context, postID, userID, username string) error {
	now := time.Now()
	pipe := r.redisClient.Pipeline()

	// 1. 全局与时间窗口计数
	pipe.Incr(ctx, constant.StatsTotalCommentsKey)
	dayKey := constant.StatsCommentsDayPrefix + dayKeySuffix(now)
	pipe.Incr(ctx, dayKey)
	pipe.Expire(ctx, dayKey, constant.StatsDailyKeyTTL)
	weekKey := constant.StatsCommentsWeekPrefix + weekKeySuffix(now)
	pipe.Incr(ctx, weekKey)
	pipe.Expire(ctx, weekKey, constant.StatsWeeklyKeyTTL)
	pipe.Incr(ctx, constant.StatsCommentsMonthPrefix+monthKeySuffix(now))

	// 2. 帖子与用户维度计数
	pipe.Incr(ctx, constant.StatsPostPrefix+postID+":comments")
	pipe.Incr(ctx, constant.StatsUserPrefix+userID+":comments")
	userDayKey := constant.StatsUserPrefix + userID + ":comments:day:" + dayKeySuffix(now)
	pipe.Incr(ctx, userDayKey)
	pipe.Expire(ctx, userDayKey, constant.StatsDailyKeyTTL)

	// 3. 两个排行榜
	pipe.ZIncrBy(ctx, constant.StatsTopCommentersKey, 1, username)
	pipe.ZIncrBy(ctx, constant.StatsPopularPostsKey, 1, postID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("累加评论创建统计(postID: %s, userID: %s)失败: %w", postID, userID, err)
	}
	return nil
}

func (r *analyticsRepository) TrackCommentDeleted(ctx context.Context, postID, userID, username string) error {
	now := time.Now()
	pipe := r.redisClient.Pipeline()

	// 与 TrackCommentCreated 镜像回退。时间窗口计数只回退当前窗口：
	// 跨窗口删除时历史窗口保持“当期发生量”的语义，不做追溯修正。
	pipe.Decr(ctx, constant.StatsTotalCommentsKey)
	pipe.Decr(ctx, constant.StatsCommentsDayPrefix+dayKeySuffix(now))
	pipe.Decr(ctx, constant.StatsCommentsWeekPrefix+weekKeySuffix(now))
	pipe.Decr(ctx, constant.StatsCommentsMonthPrefix+monthKeySuffix(now))

	pipe.Decr(ctx, constant.StatsPostPrefix+postID+":comments")
	pipe.Decr(ctx, constant.StatsUserPrefix+userID+":comments")
	pipe.Decr(ctx, constant.StatsUserPrefix+userID+":comments:day:"+dayKeySuffix(now))

	pipe.ZIncrBy(ctx, constant.StatsTopCommentersKey, -1, username)
	pipe.ZIncrBy(ctx, constant.StatsPopularPostsKey, -1, postID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("回退评论删除统计(postID: %s, userID: %s)失败: %w", postID, userID, err)
	}
	return nil
}

func (r *analyticsRepository) TrackPageView(ctx context.Context, postID, visitorID string) error {
	now := time.Now()
	pipe := r.redisClient.Pipeline()

	pipe.Incr(ctx, constant.StatsPostPrefix+postID+":views")
	visitorsKey := constant.StatsPostPrefix + postID + ":visitors:" + dayKeySuffix(now)
	pipe.SAdd(ctx, visitorsKey, visitorID)
	pipe.Expire(ctx, visitorsKey, constant.UniqueVisitorsKeyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("记录帖子浏览(postID: %s)失败: %w", postID, err)
	}
	return nil
}

// getCounter 读取一个整数计数器，Key 不存在时返回 0。
func (r *analyticsRepository) getCounter(ctx context.Context, key string) (int64, error) {
	raw, err := r.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("读取统计计数(key: %s)失败: %w", key, err)
	}
	count, parseErr := strconv.ParseInt(raw, 10, 64)
	if parseErr != nil {
		return 0, fmt.Errorf("解析统计计数(key: %s, raw: %s)失败: %w", key, raw, parseErr)
	}
	return count, nil
}

func (r *analyticsRepository) GetCommentStats(ctx context.Context) (*vo.CommentStatsVO, error) {
	now := time.Now()

	total, err := r.getCounter(ctx, constant.StatsTotalCommentsKey)
	if err != nil {
		return nil, err
	}
	today, err := r.getCounter(ctx, constant.StatsCommentsDayPrefix+dayKeySuffix(now))
	if err != nil {
		return nil, err
	}
	thisWeek, err := r.getCounter(ctx, constant.StatsCommentsWeekPrefix+weekKeySuffix(now))
	if err != nil {
		return nil, err
	}
	thisMonth, err := r.getCounter(ctx, constant.StatsCommentsMonthPrefix+monthKeySuffix(now))
	if err != nil {
		return nil, err
	}

	topCommenters, err := r.GetTopCommenters(ctx, 10)
	if err != nil {
		return nil, err
	}
	popularPosts, err := r.GetPopularPosts(ctx, 10)
	if err != nil {
		return nil, err
	}

	return &vo.CommentStatsVO{
		TotalComments:     total,
		CommentsToday:     today,
		CommentsThisWeek:  thisWeek,
		CommentsThisMonth: thisMonth,
		TopCommenters:     topCommenters,
		PopularPosts:      popularPosts,
	}, nil
}

func (r *analyticsRepository) GetTopCommenters(ctx context.Context, limit int64) ([]vo.TopCommenterVO, error) {
	members, err := r.redisClient.ZRevRangeWithScores(ctx, constant.StatsTopCommentersKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("读取评论者排行榜失败: %w", err)
	}
	result := make([]vo.TopCommenterVO, 0, len(members))
	for _, m := range members {
		username, ok := m.Member.(string)
		if !ok {
			continue
		}
		result = append(result, vo.TopCommenterVO{
			Username:     username,
			CommentCount: int64(m.Score),
		})
	}
	return result, nil
}

func (r *analyticsRepository) GetPopularPosts(ctx context.Context, limit int64) ([]vo.PopularPostVO, error) {
	members, err := r.redisClient.ZRevRangeWithScores(ctx, constant.StatsPopularPostsKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("读取帖子热度排行榜失败: %w", err)
	}
	result := make([]vo.PopularPostVO, 0, len(members))
	for _, m := range members {
		postID, ok := m.Member.(string)
		if !ok {
			continue
		}
		result = append(result, vo.PopularPostVO{
			PostID:       postID,
			CommentCount: int64(m.Score),
		})
	}
	return result, nil
}

func (r *analyticsRepository) GetPostCommentCount(ctx context.Context, postID string) (int64, error) {
	return r.getCounter(ctx, constant.StatsPostPrefix+postID+":comments")
}

func (r *analyticsRepository) GetUserCommentCount(ctx context.Context, userID string) (int64, error) {
	return r.getCounter(ctx, constant.StatsUserPrefix+userID+":comments")
}

func (r *analyticsRepository) GetUserCommentCountToday(ctx context.Context, userID string) (int64, error) {
	return r.getCounter(ctx, constant.StatsUserPrefix+userID+":comments:day:"+dayKeySuffix(time.Now()))
}

func (r *analyticsRepository) GetPageViewStats(ctx context.Context, postID string) (*vo.PageViewStatsVO, error) {
	totalViews, err := r.getCounter(ctx, constant.StatsPostPrefix+postID+":views")
	if err != nil {
		return nil, err
	}
	visitorsKey := constant.StatsPostPrefix + postID + ":visitors:" + dayKeySuffix(time.Now())
	uniqueToday, err := r.redisClient.SCard(ctx, visitorsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("读取帖子独立访客数(postID: %s)失败: %w", postID, err)
	}

	return &vo.PageViewStatsVO{
		TotalViews:          totalViews,
		UniqueVisitorsToday: uniqueToday,
	}, nil
}
