package config

// COSConfig 包含附件对象存储（腾讯云 COS）的配置。
// 评论附件经异步 worker 处理后上传到 COS，原始 base64 数据仍保留在数据库中。
type COSConfig struct {
	SecretID   string `mapstructure:"secret_id" json:"secret_id" yaml:"secret_id"`
	SecretKey  string `mapstructure:"secret_key" json:"secret_key" yaml:"secret_key"`
	BucketName string `mapstructure:"bucket_name" json:"bucket_name" yaml:"bucket_name"`
	AppID      string `mapstructure:"app_id" json:"app_id" yaml:"app_id"`
	Region     string `mapstructure:"region" json:"region" yaml:"region"`

	// BaseURL 可选，配置 CDN 或自定义域名时用于拼接对象的公开访问 URL；
	// 为空时使用标准存储桶 URL。
	BaseURL string `mapstructure:"base_url" json:"base_url" yaml:"base_url"`
}
