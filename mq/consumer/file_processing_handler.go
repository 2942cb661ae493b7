package consumer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // 注册 GIF 解码器
	_ "image/jpeg" // 注册 JPEG 解码器
	_ "image/png"  // 注册 PNG 解码器
	"strings"

	"github.com/Xushengqwer/go-common/commonerrors"
	"github.com/Xushengqwer/go-common/core"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Xushengqwer/comment_service/dependencies"
	"github.com/Xushengqwer/comment_service/models/entities"
	"github.com/Xushengqwer/comment_service/models/events"
	"github.com/Xushengqwer/comment_service/repo/mysql"
)

// FileProcessingHandler 是 file.processing 队列的消费者。
// - 意图: 对评论附件做离线后处理——解码、图片校验、上传对象存储、
//   回写评论的附件 URL 与处理完成标记，最后广播 UPDATED_COMMENT。
// - 幂等性: 对象键由评论 ID 决定（重复上传覆盖同一对象），
//   回写是整列覆盖更新，重复消费不会产生叠加效果。
type FileProcessingHandler struct {
	logger      *core.ZapLogger
	commentRepo mysql.CommentRepository
	cosClient   dependencies.COSClientInterface
	producer    DerivedEventPublisher
}

func NewFileProcessingHandler(
	logger *core.ZapLogger,
	commentRepo mysql.CommentRepository,
	cosClient dependencies.COSClientInterface,
	publisher DerivedEventPublisher,
) *FileProcessingHandler {
	return &FileProcessingHandler{
		logger:      logger,
		commentRepo: commentRepo,
		cosClient:   cosClient,
		producer:    publisher,
	}
}

// extensionForMime 将附件 MIME 类型映射为对象键后缀。
func extensionForMime(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "text/plain":
		return ".txt"
	default:
		return ".bin"
	}
}

func (h *FileProcessingHandler) Handle(ctx context.Context, msg kafka.Message) error {
	h.logger.Debug("FileProcessingHandler: 开始处理 Kafka 消息", zap.String("topic", msg.Topic))

	// 1. 反序列化并校验事件
	var event events.FileProcessingEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("FileProcessingHandler: 反序列化 Kafka 消息失败",
			zap.Error(err), zap.ByteString("value", msg.Value))
		return nil // 不重试无法解析的消息
	}
	if !event.Valid() {
		h.logger.Warn("FileProcessingHandler: 事件缺少必备字段，丢弃",
			zap.String("event_id", event.EventID))
		return nil
	}

	// 2. 解码附件内容（上游以 base64 传输）
	raw, err := base64.StdEncoding.DecodeString(event.Attachment.Data)
	if err != nil {
		h.logger.Error("FileProcessingHandler: 附件内容 base64 解码失败，丢弃",
			zap.Uint64("comment_id", event.CommentID),
			zap.Error(err))
		return nil // 数据损坏，重试无意义
	}

	// 3. 图片类附件做格式校验，声明的 MIME 与实际内容不符则丢弃
	if strings.HasPrefix(event.Attachment.MimeType, "image/") {
		if _, _, decodeErr := image.DecodeConfig(bytes.NewReader(raw)); decodeErr != nil {
			h.logger.Warn("FileProcessingHandler: 附件声明为图片但无法解码，丢弃",
				zap.Uint64("comment_id", event.CommentID),
				zap.String("mime_type", event.Attachment.MimeType),
				zap.Error(decodeErr))
			return nil
		}
	}

	// 4. 上传对象存储，对象键由评论 ID 决定
	objectKey := fmt.Sprintf("comments/attachments/%d%s", event.CommentID, extensionForMime(event.Attachment.MimeType))
	publicURL, err := h.cosClient.UploadFile(ctx, objectKey, bytes.NewReader(raw), int64(len(raw)), event.Attachment.MimeType)
	if err != nil {
		return fmt.Errorf("FileProcessingHandler: 上传附件(comment_id: %d)失败: %w", event.CommentID, err)
	}

	// 5. 回写评论的附件元数据，正文内容已上传对象存储，不再留存于数据库
	attachment := &entities.CommentAttachment{
		Data:         "",
		FileName:     event.Attachment.Filename,
		MimeType:     event.Attachment.MimeType,
		OriginalName: event.Attachment.OriginalName,
		Size:         event.Attachment.Size,
		URL:          publicURL,
		Processed:    true,
	}
	if err := h.commentRepo.UpdateAttachment(ctx, event.CommentID, attachment); err != nil {
		if errors.Is(err, commonerrors.ErrRepoNotFound) {
			// 评论在处理完成前被删除，任务作废
			h.logger.Warn("FileProcessingHandler: 评论已不存在，放弃附件回写",
				zap.Uint64("comment_id", event.CommentID))
			return nil
		}
		return fmt.Errorf("FileProcessingHandler: 回写附件元数据(comment_id: %d)失败: %w", event.CommentID, err)
	}

	h.logger.Info("FileProcessingHandler: 附件处理完成",
		zap.Uint64("comment_id", event.CommentID),
		zap.String("object_key", objectKey),
		zap.String("url", publicURL))

	// 6. 广播评论更新，房间内客户端可刷新附件展示
	comment, err := h.commentRepo.GetCommentByID(ctx, event.CommentID)
	if err != nil {
		if errors.Is(err, commonerrors.ErrRepoNotFound) {
			return nil
		}
		return fmt.Errorf("FileProcessingHandler: 读取评论(comment_id: %d)失败: %w", event.CommentID, err)
	}

	envelope := &events.BroadcastEnvelope{
		Type: events.TypeUpdatedComment,
		Data: events.BroadcastCommentData{
			ID:       comment.ID,
			PostID:   comment.PostID,
			ParentID: comment.ParentID,
			Content:  comment.Content,
			Author: &events.AuthorData{
				UserID:   comment.Author.UserID,
				Username: comment.Author.UserName,
				Email:    comment.Author.Email,
				Homepage: comment.Author.Homepage,
			},
			Attachment: &events.AttachmentData{
				Filename:     attachment.FileName,
				MimeType:     attachment.MimeType,
				OriginalName: attachment.OriginalName,
				Size:         attachment.Size,
				URL:          attachment.URL,
			},
		},
	}
	if err := h.producer.PublishBroadcast(ctx, "comment.updated", envelope); err != nil {
		return err
	}

	return nil
}
