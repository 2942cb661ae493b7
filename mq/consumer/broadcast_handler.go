package consumer

import (
	"context"
	"encoding/json"

	"github.com/Xushengqwer/go-common/core"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Xushengqwer/comment_service/models/events"
	"github.com/Xushengqwer/comment_service/realtime"
)

// CommentBroadcaster 抽象了广播消费端需要的实时推送能力。
// 生产实现为 *realtime.Hub；单元测试注入内存假实现。
type CommentBroadcaster interface {
	BroadcastNewComment(data events.BroadcastCommentData)
	BroadcastUpdatedComment(data events.BroadcastCommentData)
	BroadcastDeletedComment(data events.BroadcastCommentData)
}

var _ CommentBroadcaster = (*realtime.Hub)(nil)

// 扇出主题上本服务绑定的路由键。生产端把路由键写入消息 Key 与
// routing_key Header（见 KafkaProducer.PublishBroadcast），消费端按此过滤，
// 路由键未绑定的消息不进入信封解析。
var boundRoutingKeys = map[string]struct{}{
	"comment.created": {},
	"comment.updated": {},
	"comment.deleted": {},
}

// BroadcastHandler 是扇出主题 comment.events 的消费者。
// - 每个服务实例都以独占消费组订阅该主题（见 NewBroadcastConsumer），
//   因此每条广播消息会到达所有实例，再由各实例的 Hub 推送给
//   本实例上连接的 WebSocket 客户端。
type BroadcastHandler struct {
	logger *core.ZapLogger
	hub    CommentBroadcaster
}

func NewBroadcastHandler(logger *core.ZapLogger, hub CommentBroadcaster) *BroadcastHandler {
	return &BroadcastHandler{
		logger: logger,
		hub:    hub,
	}
}

// routingKeyOf 取出消息的路由键：优先 routing_key Header，回退消息 Key。
func routingKeyOf(msg kafka.Message) string {
	for _, header := range msg.Headers {
		if header.Key == "routing_key" {
			return string(header.Value)
		}
	}
	return string(msg.Key)
}

func (h *BroadcastHandler) Handle(_ context.Context, msg kafka.Message) error {
	// 1. 路由键过滤，未绑定的路由键直接丢弃
	if routingKey := routingKeyOf(msg); routingKey != "" {
		if _, bound := boundRoutingKeys[routingKey]; !bound {
			h.logger.Debug("BroadcastHandler: 路由键未绑定，丢弃",
				zap.String("routing_key", routingKey))
			return nil
		}
	}

	// 2. 反序列化并校验信封
	var envelope events.BroadcastEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		h.logger.Error("BroadcastHandler: 反序列化广播信封失败",
			zap.Error(err), zap.ByteString("value", msg.Value))
		return nil // 不重试无法解析的消息
	}
	if !envelope.Valid() {
		h.logger.Warn("BroadcastHandler: 广播信封不合法，丢弃",
			zap.String("event_id", envelope.EventID),
			zap.String("type", envelope.Type))
		return nil
	}

	// 3. 按判别值分发到对应的 Hub 广播方法
	switch envelope.Type {
	case events.TypeNewComment:
		h.hub.BroadcastNewComment(envelope.Data)
	case events.TypeUpdatedComment:
		h.hub.BroadcastUpdatedComment(envelope.Data)
	case events.TypeDeletedComment:
		h.hub.BroadcastDeletedComment(envelope.Data)
	}

	h.logger.Debug("BroadcastHandler: 广播已分发",
		zap.String("type", envelope.Type),
		zap.String("post_id", envelope.Data.PostID),
		zap.Uint64("comment_id", envelope.Data.ID))
	return nil
}
