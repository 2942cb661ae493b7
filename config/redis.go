package config

// RedisConfig 包含 Redis 连接相关的配置。
// 整个进程共享一个并发安全的客户端实例，缓存、统计、限流复用同一连接池。
type RedisConfig struct {
	Address  string `mapstructure:"address" json:"address" yaml:"address"`    // host:port
	Password string `mapstructure:"password" json:"password" yaml:"password"` // 为空表示无密码
	DB       int    `mapstructure:"db" json:"db" yaml:"db"`                   // 逻辑库编号
	PoolSize int    `mapstructure:"pool_size" json:"pool_size" yaml:"pool_size"`

	// ConnectMaxRetries / ConnectRetryIntervalSec 控制启动时 PING 探测的重试策略。
	ConnectMaxRetries       int `mapstructure:"connect_max_retries" json:"connect_max_retries" yaml:"connect_max_retries"`
	ConnectRetryIntervalSec int `mapstructure:"connect_retry_interval_sec" json:"connect_retry_interval_sec" yaml:"connect_retry_interval_sec"`
}

// RateLimitConfig 包含评论创建接口的滑动窗口限流配置。
// 限流属于外围防护：Redis 不可用时放行请求（记日志），绝不阻断核心链路。
type RateLimitConfig struct {
	Enabled       bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Limit         int  `mapstructure:"limit" json:"limit" yaml:"limit"`                            // 窗口内允许的最大请求数
	WindowSeconds int  `mapstructure:"window_seconds" json:"window_seconds" yaml:"window_seconds"` // 窗口长度（秒）
}
