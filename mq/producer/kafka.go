package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Xushengqwer/go-common/core"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Xushengqwer/comment_service/config"
	"github.com/Xushengqwer/comment_service/models/events"
)

// KafkaProducer Kafka 消息生产者
// - 四个点对点主题（comment.created / comment.deleted / file.processing / email.notification）
//   承载异步副作用，comment.events 主题承载面向实时推送器的扇出广播。
type KafkaProducer struct {
	writer  *kafka.Writer
	logger  *core.ZapLogger
	topics  config.Topics
	brokers []string
}

// NewKafkaProducer 创建一个新的 Kafka 生产者实例
func NewKafkaProducer(config config.KafkaConfig, logger *core.ZapLogger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(config.Brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &KafkaProducer{
		writer:  writer,
		logger:  logger,
		topics:  config.Topics,
		brokers: config.Brokers,
	}
}

// WaitReady 探测 broker 可达性，带重试。
// - 意图: 服务启动时等待消息通道就绪；重试耗尽后返回错误，
//   由调用方决定是否降级启动（HTTP 服务可在无 MQ 的情况下继续工作）。
func (p *KafkaProducer) WaitReady(ctx context.Context, maxRetries int, interval time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
		if err == nil {
			_ = conn.Close()
			p.logger.Info("Kafka broker 已就绪", zap.Int("attempt", attempt))
			return nil
		}
		lastErr = err
		p.logger.Warn("Kafka broker 尚未就绪，等待重试",
			zap.Int("attempt", attempt),
			zap.Int("maxRetries", maxRetries),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("等待 Kafka broker 就绪失败(重试 %d 次): %w", maxRetries, lastErr)
}

// SendEvent 发送事件到指定 Kafka 主题
func (p *KafkaProducer) SendEvent(ctx context.Context, topic string, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", zap.Error(err), zap.String("topic", topic))
		return err
	}

	p.logger.Debug("Sending Kafka message",
		zap.String("topic", topic),
		zap.ByteString("payload", eventBytes))

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Value: eventBytes,
	})

	if err != nil {
		p.logger.Error("Failed to write Kafka message", zap.Error(err), zap.String("topic", topic))
	} else {
		p.logger.Info("Successfully sent Kafka message", zap.String("topic", topic))
	}
	return err
}

// SendCommentCreatedEvent 发送评论创建事件到 Kafka
// - 意图: 评论持久化成功后通知异步 worker 派生副作用（附件处理、回复通知、广播）
// - 输入: ctx context.Context 上下文, event *events.CommentCreatedEvent 事件载荷（EventID/Timestamp 由本方法填充）
// - 输出: error 错误信息
func (p *KafkaProducer) SendCommentCreatedEvent(ctx context.Context, event *events.CommentCreatedEvent) error {
	// 1. 填充事件元数据
	event.EventID = uuid.New().String()
	event.Timestamp = time.Now()

	// 2. 发送事件到 CommentCreated 主题
	return p.SendEvent(ctx, p.topics.CommentCreated, event)
}

// SendCommentDeletedEvent 发送评论删除事件到 Kafka
// - 意图: 级联删除完成后通知下游（当前主要用于审计与未来扩展）
// - 输入: ctx context.Context 上下文, event *events.CommentDeletedEvent 事件载荷
// - 输出: error 错误信息
func (p *KafkaProducer) SendCommentDeletedEvent(ctx context.Context, event *events.CommentDeletedEvent) error {
	event.EventID = uuid.New().String()
	event.Timestamp = time.Now()

	return p.SendEvent(ctx, p.topics.CommentDeleted, event)
}

// SendFileProcessingEvent 发送附件处理事件到 Kafka
// - 意图: worker 消费 comment.created 时，为携带附件的评论派生处理任务
func (p *KafkaProducer) SendFileProcessingEvent(ctx context.Context, event *events.FileProcessingEvent) error {
	event.EventID = uuid.New().String()
	event.Timestamp = time.Now()

	return p.SendEvent(ctx, p.topics.FileProcessing, event)
}

// SendEmailNotificationEvent 发送回复通知事件到 Kafka
// - 意图: worker 消费 comment.created 时，为回复类评论派生邮件通知任务
func (p *KafkaProducer) SendEmailNotificationEvent(ctx context.Context, event *events.EmailNotificationEvent) error {
	event.EventID = uuid.New().String()
	event.Timestamp = time.Now()

	return p.SendEvent(ctx, p.topics.EmailNotification, event)
}

// PublishBroadcast 发布广播信封到扇出主题 comment.events
// - 意图: 所有实时推送器实例各自以独立消费组订阅该主题，实现交换机式扇出；
//   routingKey（如 "comment.created"）写入消息 Key 与 Header，供消费端按规则过滤。
// - 输入: ctx 上下文, routingKey 路由键, envelope 广播信封（EventID/Timestamp 由本方法填充）
// - 输出: error 错误信息
func (p *KafkaProducer) PublishBroadcast(ctx context.Context, routingKey string, envelope *events.BroadcastEnvelope) error {
	envelope.EventID = uuid.New().String()
	envelope.Timestamp = time.Now()

	eventBytes, err := json.Marshal(envelope)
	if err != nil {
		p.logger.Error("Failed to marshal broadcast envelope",
			zap.Error(err),
			zap.String("routingKey", routingKey))
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topics.CommentEvents,
		Key:   []byte(routingKey),
		Headers: []kafka.Header{
			{Key: "routing_key", Value: []byte(routingKey)},
		},
		Value: eventBytes,
	})

	if err != nil {
		p.logger.Error("Failed to publish broadcast envelope",
			zap.Error(err),
			zap.String("topic", p.topics.CommentEvents),
			zap.String("routingKey", routingKey))
	} else {
		p.logger.Debug("Successfully published broadcast envelope",
			zap.String("topic", p.topics.CommentEvents),
			zap.String("routingKey", routingKey),
			zap.String("type", envelope.Type))
	}
	return err
}

// Close 关闭底层 writer，刷出未发送的消息。
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
