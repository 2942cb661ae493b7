// File: tasks/popular_posts_cache.go
package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Xushengqwer/go-common/core"
	goredis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Xushengqwer/comment_service/constant"
	"github.com/Xushengqwer/comment_service/repo/redis"
)

// popularPostsSnapshotSize 是写入快照的排行榜条数。
const popularPostsSnapshotSize = 50

// PopularPostsCacheTask 负责定时将热门帖子排行榜固化为快照缓存。
// 排行榜 ZSet 随每次评论增删实时变动，统计端点读取快照而非实时榜单，
// 把 ZRevRange 的读放大收敛到每个刷新周期一次。
type PopularPostsCacheTask struct {
	analytics   redis.AnalyticsRepository
	redisClient *goredis.Client
	cron        *cron.Cron
	logger      *core.ZapLogger
}

// NewPopularPostsCacheTask 初始化并启动热门帖子快照的定时任务。
func NewPopularPostsCacheTask(analytics redis.AnalyticsRepository, redisClient *goredis.Client, logger *core.ZapLogger) *PopularPostsCacheTask {
	cronV3 := cron.New() // 默认分钟级精度

	task := &PopularPostsCacheTask{
		analytics:   analytics,
		redisClient: redisClient,
		cron:        cronV3,
		logger:      logger,
	}
	task.startCronJob()
	return task
}

// startCronJob 配置并启动 cron 作业。
func (t *PopularPostsCacheTask) startCronJob() {
	schedule := constant.PopularCommentsCacheCronSpec
	t.logger.Info("准备启动热门帖子快照刷新定时任务", zap.String("schedule", schedule))

	entryID, err := t.cron.AddFunc(schedule, func() {
		t.logger.Info("热门帖子快照刷新任务开始执行...")
		startTime := time.Now()
		// 单次任务只有一次 ZRevRange 和一次 Set，1 分钟超时余量充足
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		t.refreshSnapshot(ctx)

		duration := time.Since(startTime)
		t.logger.Info("热门帖子快照刷新任务执行完毕", zap.Duration("duration", duration))
	})

	if err != nil {
		t.logger.Fatal("添加热门帖子快照刷新 cron 作业失败", zap.Error(err), zap.String("schedule", schedule))
	}

	t.cron.Start()
	t.logger.Info("热门帖子快照刷新定时任务已启动", zap.Uint("cronEntryID", uint(entryID)))
}

// refreshSnapshot 读取实时排行榜并覆盖写入快照 Key。
func (t *PopularPostsCacheTask) refreshSnapshot(ctx context.Context) {
	posts, err := t.analytics.GetPopularPosts(ctx, popularPostsSnapshotSize)
	if err != nil {
		t.logger.Error("读取热门帖子排行榜失败，保留上一轮快照", zap.Error(err))
		return
	}

	payload, err := json.Marshal(posts)
	if err != nil {
		t.logger.Error("序列化热门帖子快照失败", zap.Error(err))
		return
	}

	if err := t.redisClient.Set(ctx, constant.PopularPostsSnapshotKey, payload, constant.PopularPostsSnapshotTTL).Err(); err != nil {
		t.logger.Error("写入热门帖子快照失败", zap.Error(err))
		return
	}

	t.logger.Info("热门帖子快照已刷新", zap.Int("entries", len(posts)))
}

// Stop 优雅地停止 cron 调度器。
func (t *PopularPostsCacheTask) Stop() context.Context {
	t.logger.Info("正在停止热门帖子快照刷新定时任务...")
	stopCtx := t.cron.Stop()
	t.logger.Info("热门帖子快照刷新定时任务已停止调度。等待正在执行的任务完成...")
	return stopCtx
}
