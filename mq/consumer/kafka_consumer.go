package consumer

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/Xushengqwer/go-common/core"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	appConfig "github.com/Xushengqwer/comment_service/config"
)

// MessageHandler 定义了处理 Kafka 消息的接口。
// - 返回 nil 表示处理成功，消费者随后提交位点；
// - 返回错误表示处理失败，消息按死信策略处置后同样提交位点，
//   不会无限重投（等价于 nack 不重回队列）。
type MessageHandler interface {
	Handle(ctx context.Context, msg kafka.Message) error
}

// Consumer 定义 Kafka 消费者结构
// - 与自动提交不同，这里使用 FetchMessage + CommitMessages 显式提交：
//   只有 handler 成功返回（或死信处置完成）后位点才前移，
//   保证消息至少被完整处理一次。
type Consumer struct {
	reader     *kafka.Reader
	handler    MessageHandler
	logger     *core.ZapLogger
	topic      string
	deadLetter *kafka.Writer // 为 nil 时失败消息仅记日志后丢弃
}

// NewConsumer 创建点对点队列的消费者实例。
// - 所有实例共用 cfg.ConsumerGroupID，同一条消息只会被一个实例处理。
func NewConsumer(cfg *appConfig.KafkaConfig, topicName string, handler MessageHandler, logger *core.ZapLogger) (*Consumer, error) {
	return newConsumer(cfg, cfg.ConsumerGroupID, topicName, handler, logger)
}

// NewBroadcastConsumer 创建广播模式的消费者实例。
// - 每个实例使用 "broadcast-<uuid>" 的独占消费组，使每条消息到达所有实例，
//   实现交换机式扇出（实例下线后该消费组自然废弃）。
// - 广播消息面向实时推送，不挂死信：失败只记日志。
func NewBroadcastConsumer(cfg *appConfig.KafkaConfig, topicName string, handler MessageHandler, logger *core.ZapLogger) (*Consumer, error) {
	groupID := "broadcast-" + uuid.New().String()
	c, err := newConsumer(cfg, groupID, topicName, handler, logger)
	if err != nil {
		return nil, err
	}
	c.deadLetter = nil
	return c, nil
}

func newConsumer(cfg *appConfig.KafkaConfig, groupID string, topicName string, handler MessageHandler, logger *core.ZapLogger) (*Consumer, error) {
	if topicName == "" {
		return nil, errors.New("kafka topic 名称不能为空")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers 配置不能为空")
	}
	if groupID == "" {
		return nil, errors.New("kafka 消费组 ID 不能为空")
	}

	logger.Info("初始化 Kafka 消费者",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", topicName),
		zap.String("group_id", groupID))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    topicName,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})

	var deadLetter *kafka.Writer
	if cfg.DeadLetterSuffix != "" {
		deadLetter = &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    topicName + cfg.DeadLetterSuffix,
			Balancer: &kafka.LeastBytes{},
			// 死信主题可能不存在，首次写入时自动创建
			AllowAutoTopicCreation: true,
		}
	}

	return &Consumer{
		reader:     reader,
		handler:    handler,
		logger:     logger,
		topic:      topicName,
		deadLetter: deadLetter,
	}, nil
}

// Start 启动消费者循环来读取和处理消息
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info("Kafka 消费者已启动", zap.String("topic", c.topic))
	defer c.logger.Info("Kafka 消费者已停止", zap.String("topic", c.topic))

	for {
		// 检查 context 是否已取消
		select {
		case <-ctx.Done():
			c.logger.Warn("消费者上下文已取消，正在退出...", zap.String("topic", c.topic))
			return
		default:
			// 继续执行
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			// 如果 context 被取消或 Reader 关闭，正常退出
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				c.logger.Warn("消费者读取循环退出", zap.String("topic", c.topic), zap.Error(err))
				return
			}
			c.logger.Error("读取 Kafka 消息失败", zap.String("topic", c.topic), zap.Error(err))
			time.Sleep(1 * time.Second) // 简单等待后重试
			continue
		}

		handleCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		handleErr := c.handler.Handle(handleCtx, msg)
		cancel()

		if handleErr != nil {
			c.logger.Error("处理 Kafka 消息时发生错误",
				zap.Error(handleErr),
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset))
			c.forwardToDeadLetter(ctx, msg)
		}

		// 无论成功失败都提交位点：失败消息已按死信策略处置，不做原地重投
		if commitErr := c.reader.CommitMessages(ctx, msg); commitErr != nil {
			c.logger.Error("提交 Kafka 位点失败",
				zap.Error(commitErr),
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset))
		}
	}
}

// forwardToDeadLetter 将处理失败的消息转发到死信主题（如已配置）。
func (c *Consumer) forwardToDeadLetter(ctx context.Context, msg kafka.Message) {
	if c.deadLetter == nil {
		return
	}
	dlqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := c.deadLetter.WriteMessages(dlqCtx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: msg.Headers,
	})
	if err != nil {
		c.logger.Error("转发消息到死信主题失败，消息将被丢弃",
			zap.Error(err),
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset))
		return
	}
	c.logger.Warn("失败消息已转发到死信主题",
		zap.String("topic", msg.Topic),
		zap.String("deadLetterTopic", c.deadLetter.Topic),
		zap.Int64("offset", msg.Offset))
}

// Close 关闭 Kafka Reader 与死信 Writer
func (c *Consumer) Close() error {
	c.logger.Info("正在关闭 Kafka 消费者...", zap.String("topic", c.topic))
	if c.deadLetter != nil {
		if err := c.deadLetter.Close(); err != nil {
			c.logger.Error("关闭死信 Writer 失败", zap.Error(err), zap.String("topic", c.topic))
		}
	}
	if err := c.reader.Close(); err != nil {
		c.logger.Error("关闭 Kafka Reader 失败", zap.Error(err), zap.String("topic", c.topic))
		return err
	}
	c.logger.Info("Kafka 消费者已成功关闭", zap.String("topic", c.topic))
	return nil
}
