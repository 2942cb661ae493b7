package config

// KafkaConfig 包含消息队列相关的全部配置。
//
// 本服务在 Kafka 上实现两种投递模式：
//  1. 点对点持久化队列：各消费者共用 ConsumerGroupID，同一条消息只会被
//     一个实例处理，处理成功后显式提交位点（至少一次投递）。
//  2. 广播（交换机）模式：每个实例使用 "broadcast-<uuid>" 的独占消费组订阅
//     CommentEvents 主题，从而让每条广播消息到达所有水平扩展的实例，
//     等价于 RabbitMQ topic exchange + 排他自动删除队列的组合。
type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers" json:"brokers" yaml:"brokers"`
	Topics          Topics   `mapstructure:"topics" json:"topics" yaml:"topics"`
	ConsumerGroupID string   `mapstructure:"consumer_group_id" json:"consumer_group_id" yaml:"consumer_group_id"`

	// ConnectMaxRetries / ConnectRetryIntervalSec 控制启动时探测 broker 可用性的
	// 重试次数与间隔。超过上限后 broker 不可用视为启动致命错误。
	ConnectMaxRetries       int `mapstructure:"connect_max_retries" json:"connect_max_retries" yaml:"connect_max_retries"`
	ConnectRetryIntervalSec int `mapstructure:"connect_retry_interval_sec" json:"connect_retry_interval_sec" yaml:"connect_retry_interval_sec"`

	// ReadyMaxRetries / ReadyRetryIntervalSec 控制异步 worker 建立订阅前等待
	// broker 就绪的重试次数与间隔。耗尽后 worker 以降级模式启动（只记日志，
	// 不阻塞整个应用启动）。
	ReadyMaxRetries       int `mapstructure:"ready_max_retries" json:"ready_max_retries" yaml:"ready_max_retries"`
	ReadyRetryIntervalSec int `mapstructure:"ready_retry_interval_sec" json:"ready_retry_interval_sec" yaml:"ready_retry_interval_sec"`

	// DeadLetterSuffix 非空时，处理失败的消息会在提交位点前转发到
	// "<原topic><DeadLetterSuffix>"，便于离线排查；为空则仅记日志后丢弃。
	DeadLetterSuffix string `mapstructure:"dead_letter_suffix" json:"dead_letter_suffix" yaml:"dead_letter_suffix"`
}

// Topics 列出本服务使用的全部逻辑通道。
type Topics struct {
	CommentCreated    string `mapstructure:"commentCreated" yaml:"commentCreated"`       // 评论创建事件（点对点）
	CommentDeleted    string `mapstructure:"commentDeleted" yaml:"commentDeleted"`       // 评论删除事件（点对点）
	FileProcessing    string `mapstructure:"fileProcessing" yaml:"fileProcessing"`       // 附件后处理任务（点对点）
	EmailNotification string `mapstructure:"emailNotification" yaml:"emailNotification"` // 回复邮件通知（点对点）
	CommentEvents     string `mapstructure:"commentEvents" yaml:"commentEvents"`         // 实时广播交换机（扇出）
}
