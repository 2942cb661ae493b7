package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Xushengqwer/go-common/core"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Xushengqwer/comment_service/constant"
)

// RateLimitResult 是一次限流判定的结果。
type RateLimitResult struct {
	// Allowed 表示本次请求是否放行。
	Allowed bool
	// Remaining 是当前窗口内剩余的可用配额。
	Remaining int64
	// ResetAt 是窗口内最早一次请求滑出窗口的时刻，即配额开始恢复的时间。
	ResetAt time.Time
}

// RateLimiter 定义了基于 Redis 的滑动窗口限流器接口。
// - 每个 (action, subject) 组合维护一个 Sorted Set，member 为请求唯一标识，
//   score 为请求时间戳(毫秒)。判定时先清理窗口外的旧记录，再比较窗口内数量。
// - 限流器失效不应阻断业务：Redis 故障时由调用方决定放行（fail-open）。
type RateLimiter interface {
	// Allow 对 subject 在 action 上执行一次滑动窗口判定。
	// - 放行时会同时记录本次请求；拒绝时不记录。
	Allow(ctx context.Context, action, subject string) (*RateLimitResult, error)
}

// slidingWindowLimiter 是 RateLimiter 接口的 Redis 实现。
type slidingWindowLimiter struct {
	redisClient *redis.Client
	logger      *core.ZapLogger
	limit       int64
	window      time.Duration
}

// NewSlidingWindowLimiter 是 slidingWindowLimiter 的构造函数。
// - limit: 窗口内允许的最大请求数。
// - window: 滑动窗口时长。
func NewSlidingWindowLimiter(redisClient *redis.Client, logger *core.ZapLogger, limit int64, window time.Duration) RateLimiter {
	return &slidingWindowLimiter{
		redisClient: redisClient,
		logger:      logger,
		limit:       limit,
		window:      window,
	}
}

func (l *slidingWindowLimiter) Allow(ctx context.Context, action, subject string) (*RateLimitResult, error) {
	key := constant.RateLimitPrefix + action + ":" + subject
	now := time.Now()
	windowStart := now.Add(-l.window).UnixMilli()

	// 1. 清理窗口外的旧记录并统计窗口内数量
	pipe := l.redisClient.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("限流窗口统计(key: %s)失败: %w", key, err)
	}
	count := countCmd.Val()

	// 2. 超限则拒绝，并给出配额恢复时间
	if count >= l.limit {
		resetAt := now.Add(l.window)
		oldest, err := l.redisClient.ZRangeWithScores(ctx, key, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			resetAt = time.UnixMilli(int64(oldest[0].Score)).Add(l.window)
		}
		l.logger.Warn("请求触发限流",
			zap.String("action", action),
			zap.String("subject", subject),
			zap.Int64("count", count),
			zap.Int64("limit", l.limit))
		return &RateLimitResult{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   resetAt,
		}, nil
	}

	// 3. 放行并记录本次请求，刷新 Key 的保底过期时间
	pipe = l.redisClient.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("记录限流请求(key: %s)失败: %w", key, err)
	}

	return &RateLimitResult{
		Allowed:   true,
		Remaining: l.limit - count - 1,
		ResetAt:   now.Add(l.window),
	}, nil
}
