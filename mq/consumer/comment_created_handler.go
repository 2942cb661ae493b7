package consumer

import (
	"context"
	"encoding/json"

	"github.com/Xushengqwer/go-common/core"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Xushengqwer/comment_service/models/events"
	"github.com/Xushengqwer/comment_service/mq/producer"
)

// DerivedEventPublisher 抽象了异步 worker 派生后续消息所需的发布能力。
// *producer.KafkaProducer 即为生产实现；单元测试注入内存假实现。
type DerivedEventPublisher interface {
	SendFileProcessingEvent(ctx context.Context, event *events.FileProcessingEvent) error
	SendEmailNotificationEvent(ctx context.Context, event *events.EmailNotificationEvent) error
	PublishBroadcast(ctx context.Context, routingKey string, envelope *events.BroadcastEnvelope) error
}

// 编译期确认生产实现满足接口。
var _ DerivedEventPublisher = (*producer.KafkaProducer)(nil)

// CommentCreatedHandler 是 comment.created 队列的异步 worker。
// - 意图: 把评论创建的后续副作用从请求路径上剥离。每条消息派生:
//   1. 附件处理任务（仅当评论携带附件）
//   2. 回复邮件通知（仅当评论是回复）
//   3. 实时广播信封（所有评论）
// - 派生消息发送失败会使整条消息按死信策略处置，三个副作用都具备
//   幂等性，重放不会造成重复效果叠加。
type CommentCreatedHandler struct {
	logger   *core.ZapLogger
	producer DerivedEventPublisher
}

func NewCommentCreatedHandler(logger *core.ZapLogger, publisher DerivedEventPublisher) *CommentCreatedHandler {
	return &CommentCreatedHandler{
		logger:   logger,
		producer: publisher,
	}
}

func (h *CommentCreatedHandler) Handle(ctx context.Context, msg kafka.Message) error {
	h.logger.Debug("CommentCreatedHandler: 开始处理 Kafka 消息", zap.String("topic", msg.Topic))

	// 1. 反序列化并校验事件
	var event events.CommentCreatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("CommentCreatedHandler: 反序列化 Kafka 消息失败",
			zap.Error(err), zap.ByteString("value", msg.Value))
		return nil // 不重试无法解析的消息
	}
	if !event.Valid() {
		h.logger.Warn("CommentCreatedHandler: 事件缺少必备字段，丢弃",
			zap.String("event_id", event.EventID),
			zap.ByteString("value", msg.Value))
		return nil
	}

	h.logger.Info("CommentCreatedHandler: 成功解析评论创建消息",
		zap.String("event_id", event.EventID),
		zap.Uint64("comment_id", event.CommentID),
		zap.String("post_id", event.PostID))

	// 2. 附件处理任务：仅当评论携带附件
	if event.Attachment != nil && event.Attachment.Filename != "" {
		fileEvent := &events.FileProcessingEvent{
			CommentID:  event.CommentID,
			Attachment: *event.Attachment,
		}
		if err := h.producer.SendFileProcessingEvent(ctx, fileEvent); err != nil {
			return err
		}
		h.logger.Info("CommentCreatedHandler: 已派生附件处理任务",
			zap.Uint64("comment_id", event.CommentID),
			zap.String("filename", event.Attachment.Filename))
	}

	// 3. 回复邮件通知：仅当评论是回复
	if event.ParentID != nil {
		emailEvent := &events.EmailNotificationEvent{
			Type:      "reply_notification",
			CommentID: event.CommentID,
			ParentID:  *event.ParentID,
			PostID:    event.PostID,
			Author:    event.Author,
		}
		if err := h.producer.SendEmailNotificationEvent(ctx, emailEvent); err != nil {
			return err
		}
		h.logger.Info("CommentCreatedHandler: 已派生回复通知任务",
			zap.Uint64("comment_id", event.CommentID),
			zap.Uint64("parent_id", *event.ParentID))
	}

	// 4. 实时广播：所有评论都推送到扇出主题
	envelope := &events.BroadcastEnvelope{
		Type: events.TypeNewComment,
		Data: events.BroadcastCommentData{
			ID:         event.CommentID,
			PostID:     event.PostID,
			ParentID:   event.ParentID,
			Content:    event.Content,
			Author:     &event.Author,
			Attachment: event.Attachment,
		},
	}
	if err := h.producer.PublishBroadcast(ctx, "comment.created", envelope); err != nil {
		return err
	}

	return nil
}
