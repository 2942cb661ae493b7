package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Xushengqwer/go-common/core"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Xushengqwer/comment_service/constant"
	"github.com/Xushengqwer/comment_service/models/vo"
	"github.com/Xushengqwer/comment_service/repo/redis"
)

// StatsService 定义了评论统计查询的业务接口。
// 写入侧（计数累加/回退）内嵌在评论服务的流程中，这里只做读聚合。
type StatsService interface {
	// GetCommentStats 返回全局评论统计视图。
	GetCommentStats(ctx context.Context) (*vo.CommentStatsVO, error)

	// GetTopCommenters 返回评论数最多的前 limit 名评论者。
	GetTopCommenters(ctx context.Context, limit int64) ([]vo.TopCommenterVO, error)

	// GetPopularPosts 返回评论数最多的前 limit 个帖子。
	// - 优先读定时任务生成的快照缓存，未命中时实时计算。
	GetPopularPosts(ctx context.Context, limit int64) ([]vo.PopularPostVO, error)

	// GetPageViewStats 返回指定帖子的浏览统计。
	GetPageViewStats(ctx context.Context, postID string) (*vo.PageViewStatsVO, error)

	// TrackPageView 记录一次帖子浏览。失败只记日志。
	TrackPageView(ctx context.Context, postID, visitorID string)
}

// statsService 是 StatsService 接口的具体实现。
type statsService struct {
	analytics   redis.AnalyticsRepository
	redisClient *goredis.Client // 读取快照缓存
	logger      *core.ZapLogger
}

// NewStatsService 是 statsService 的构造函数。
func NewStatsService(analytics redis.AnalyticsRepository, redisClient *goredis.Client, logger *core.ZapLogger) StatsService {
	return &statsService{
		analytics:   analytics,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (s *statsService) GetCommentStats(ctx context.Context) (*vo.CommentStatsVO, error) {
	stats, err := s.analytics.GetCommentStats(ctx)
	if err != nil {
		s.logger.Error("聚合评论统计失败", zap.Error(err))
		return nil, fmt.Errorf("聚合评论统计失败: %w", err)
	}
	return stats, nil
}

func (s *statsService) GetTopCommenters(ctx context.Context, limit int64) ([]vo.TopCommenterVO, error) {
	return s.analytics.GetTopCommenters(ctx, limit)
}

func (s *statsService) GetPopularPosts(ctx context.Context, limit int64) ([]vo.PopularPostVO, error) {
	// 1. 先读定时任务生成的快照
	raw, err := s.redisClient.Get(ctx, constant.PopularPostsSnapshotKey).Result()
	if err == nil {
		var snapshot []vo.PopularPostVO
		unmarshalErr := json.Unmarshal([]byte(raw), &snapshot)
		if unmarshalErr == nil {
			if int64(len(snapshot)) > limit {
				snapshot = snapshot[:limit]
			}
			return snapshot, nil
		}
		s.logger.Warn("热门帖子快照反序列化失败，回退到实时计算", zap.Error(unmarshalErr))
	} else if !errors.Is(err, goredis.Nil) {
		s.logger.Warn("读取热门帖子快照失败，回退到实时计算", zap.Error(err))
	}

	// 2. 快照不可用时实时读排行榜
	return s.analytics.GetPopularPosts(ctx, limit)
}

func (s *statsService) GetPageViewStats(ctx context.Context, postID string) (*vo.PageViewStatsVO, error) {
	return s.analytics.GetPageViewStats(ctx, postID)
}

func (s *statsService) TrackPageView(ctx context.Context, postID, visitorID string) {
	if err := s.analytics.TrackPageView(ctx, postID, visitorID); err != nil {
		s.logger.Warn("记录帖子浏览失败",
			zap.String("post_id", postID),
			zap.Error(err))
	}
}
