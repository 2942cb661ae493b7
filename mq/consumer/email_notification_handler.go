package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Xushengqwer/go-common/commonerrors"
	"github.com/Xushengqwer/go-common/core"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Xushengqwer/comment_service/models/events"
	"github.com/Xushengqwer/comment_service/repo/mysql"
)

// Mailer 抽象了回复通知的投递渠道。
// 默认实现只记结构化日志；接入真实邮件服务时替换实现即可，
// 消费逻辑不感知渠道差异。
type Mailer interface {
	SendReplyNotification(ctx context.Context, recipient string, event *events.EmailNotificationEvent) error
}

// logMailer 是 Mailer 的日志实现。
type logMailer struct {
	logger *core.ZapLogger
}

// NewLogMailer 是 logMailer 的构造函数。
func NewLogMailer(logger *core.ZapLogger) Mailer {
	return &logMailer{logger: logger}
}

func (m *logMailer) SendReplyNotification(_ context.Context, recipient string, event *events.EmailNotificationEvent) error {
	m.logger.Info("回复通知（日志渠道）",
		zap.String("recipient", recipient),
		zap.Uint64("comment_id", event.CommentID),
		zap.Uint64("parent_id", event.ParentID),
		zap.String("post_id", event.PostID),
		zap.String("reply_author", event.Author.Username))
	return nil
}

// EmailNotificationHandler 是 email.notification 队列的消费者。
// - 意图: 有人回复评论时，通知父评论的作者。
// - 收件人地址不随事件传输，由 ParentID 反查当前数据，
//   避免把别人的邮箱地址搬进消息队列。
type EmailNotificationHandler struct {
	logger      *core.ZapLogger
	commentRepo mysql.CommentRepository
	mailer      Mailer
}

func NewEmailNotificationHandler(logger *core.ZapLogger, commentRepo mysql.CommentRepository, mailer Mailer) *EmailNotificationHandler {
	return &EmailNotificationHandler{
		logger:      logger,
		commentRepo: commentRepo,
		mailer:      mailer,
	}
}

func (h *EmailNotificationHandler) Handle(ctx context.Context, msg kafka.Message) error {
	h.logger.Debug("EmailNotificationHandler: 开始处理 Kafka 消息", zap.String("topic", msg.Topic))

	// 1. 反序列化并校验事件
	var event events.EmailNotificationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("EmailNotificationHandler: 反序列化 Kafka 消息失败",
			zap.Error(err), zap.ByteString("value", msg.Value))
		return nil // 不重试无法解析的消息
	}
	if !event.Valid() {
		h.logger.Warn("EmailNotificationHandler: 事件缺少必备字段，丢弃",
			zap.String("event_id", event.EventID))
		return nil
	}

	// 2. 反查父评论，拿到收件人
	parent, err := h.commentRepo.GetCommentByID(ctx, event.ParentID)
	if err != nil {
		if errors.Is(err, commonerrors.ErrRepoNotFound) {
			// 父评论已被删除，通知作废
			h.logger.Warn("EmailNotificationHandler: 父评论已不存在，放弃通知",
				zap.Uint64("parent_id", event.ParentID))
			return nil
		}
		return fmt.Errorf("EmailNotificationHandler: 读取父评论(parent_id: %d)失败: %w", event.ParentID, err)
	}

	// 3. 自己回复自己不发通知
	if parent.Author.UserID == event.Author.UserID {
		h.logger.Debug("EmailNotificationHandler: 回复者即父评论作者，跳过通知",
			zap.Uint64("comment_id", event.CommentID))
		return nil
	}
	if parent.Author.Email == "" {
		h.logger.Debug("EmailNotificationHandler: 父评论作者未留邮箱，跳过通知",
			zap.Uint64("parent_id", event.ParentID))
		return nil
	}

	// 4. 投递通知
	if err := h.mailer.SendReplyNotification(ctx, parent.Author.Email, &event); err != nil {
		return fmt.Errorf("EmailNotificationHandler: 投递回复通知(comment_id: %d)失败: %w", event.CommentID, err)
	}

	h.logger.Info("EmailNotificationHandler: 回复通知已投递",
		zap.Uint64("comment_id", event.CommentID),
		zap.Uint64("parent_id", event.ParentID))
	return nil
}
