// dependencies/redis.go
package dependencies

import (
	"context"
	"fmt"
	"time"

	"github.com/Xushengqwer/go-common/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appConfig "github.com/Xushengqwer/comment_service/config"
)

// InitRedis 初始化 Redis 客户端并验证连通性。
// 返回的单个客户端实例在进程内被缓存层、统计累加器和限流器共享，
// go-redis 客户端本身是并发安全的连接池。
func InitRedis(cfg *appConfig.RedisConfig, logger *core.ZapLogger) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis 地址 (redisConfig.address) 未配置")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// 带重试的 PING 探测：缓存不可用不应立刻放弃，但耗尽重试后视为启动失败，
	// 由调用方决定是否致命（本服务将缓存视为硬依赖之一，启动期要求可达）。
	maxRetries := cfg.ConnectMaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	retryInterval := time.Duration(cfg.ConnectRetryIntervalSec) * time.Second
	if retryInterval <= 0 {
		retryInterval = 2 * time.Second
	}

	var err error
	logger.Info("开始连接 Redis...", zap.String("address", cfg.Address), zap.Int("db", cfg.DB))
	for i := 0; i < maxRetries; i++ {
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			logger.Info("成功连接到 Redis")
			return client, nil
		}
		logger.Warn("无法连接到 Redis，尝试重试",
			zap.Int("retry", i+1),
			zap.Int("maxRetries", maxRetries),
			zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}

	_ = client.Close()
	logger.Error("无法连接到 Redis", zap.Error(err))
	return nil, fmt.Errorf("无法连接到 Redis (%s): %w", cfg.Address, err)
}
