package config

import "github.com/Xushengqwer/go-common/config"

// CommentConfig 是本服务的聚合配置，由 yaml 配置文件经 core.LoadConfig 填充。
type CommentConfig struct {
	ZapConfig       config.ZapConfig     `mapstructure:"zapConfig" json:"zapConfig" yaml:"zapConfig"`
	GormLogConfig   config.GormLogConfig `mapstructure:"gormLogConfig" json:"gormLogConfig" yaml:"gormLogConfig"`
	ServerConfig    config.ServerConfig  `mapstructure:"serverConfig" json:"serverConfig" yaml:"serverConfig"`
	TracerConfig    config.TracerConfig  `mapstructure:"tracerConfig" json:"tracerConfig" yaml:"tracerConfig"`
	MySQLConfig     MySQLConfig          `mapstructure:"mysqlConfig" json:"mysqlConfig" yaml:"mysqlConfig"`
	RedisConfig     RedisConfig          `mapstructure:"redisConfig" json:"redisConfig" yaml:"redisConfig"`
	KafkaConfig     KafkaConfig          `mapstructure:"kafkaConfig" json:"kafkaConfig" yaml:"kafkaConfig"`
	RateLimitConfig RateLimitConfig      `mapstructure:"rateLimitConfig" json:"rateLimitConfig" yaml:"rateLimitConfig"`
	COSConfig       COSConfig            `mapstructure:"attachmentCosConfig" json:"attachmentCosConfig" yaml:"attachmentCosConfig"`
}
