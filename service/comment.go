package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Xushengqwer/go-common/commonerrors"
	"github.com/Xushengqwer/go-common/core"
	"go.uber.org/zap"

	"github.com/Xushengqwer/comment_service/constant"
	"github.com/Xushengqwer/comment_service/models/dto"
	"github.com/Xushengqwer/comment_service/models/entities"
	"github.com/Xushengqwer/comment_service/models/events"
	"github.com/Xushengqwer/comment_service/models/vo"
	"github.com/Xushengqwer/comment_service/mq/producer"
	"github.com/Xushengqwer/comment_service/myErrors"
	"github.com/Xushengqwer/comment_service/realtime"
	"github.com/Xushengqwer/comment_service/repo/mysql"
	"github.com/Xushengqwer/comment_service/repo/redis"
)

// EventPublisher 抽象了评论服务需要的消息发布能力。
// *producer.KafkaProducer 即为生产实现；单元测试注入内存假实现。
type EventPublisher interface {
	SendCommentCreatedEvent(ctx context.Context, event *events.CommentCreatedEvent) error
	SendCommentDeletedEvent(ctx context.Context, event *events.CommentDeletedEvent) error
	PublishBroadcast(ctx context.Context, routingKey string, envelope *events.BroadcastEnvelope) error
}

// 编译期确认生产实现满足接口。
var _ EventPublisher = (*producer.KafkaProducer)(nil)

// RealtimeBroadcaster 抽象了面向本实例 WebSocket 连接的实时推送能力。
// 评论落库成功后同步调用，本实例上的订阅者即刻收到事件，
// 不依赖 Kafka 链路的可用性；其他实例由 comment.events 扇出主题覆盖。
type RealtimeBroadcaster interface {
	BroadcastNewComment(data events.BroadcastCommentData)
	BroadcastDeletedComment(data events.BroadcastCommentData)
}

var _ RealtimeBroadcaster = (*realtime.Hub)(nil)

// CommentService 定义了处理评论核心业务逻辑的接口。
type CommentService interface {
	// CreateComment 处理用户发布根评论的业务流程。
	// - 校验内容后持久化，同步失效该帖子的全部评论缓存、记录统计计数
	//   并同步推送给本实例的实时订阅者，最后异步发送 Kafka 事件触发
	//   其余副作用（附件处理、回复通知、跨实例广播由异步 worker 派生）。
	// - 返回 VO，包含成功创建的评论。
	CreateComment(ctx context.Context, req *dto.CreateCommentRequest) (*vo.CommentVO, error)

	// CreateReply 处理用户回复评论的业务流程。
	// - 在 CreateComment 的流程之上，先校验父评论存在且属于同一帖子：
	//   父评论不存在返回 commonerrors.ErrRepoNotFound，
	//   帖子不匹配返回 myErrors.ErrParentMismatch。
	CreateReply(ctx context.Context, req *dto.CreateReplyRequest) (*vo.CommentVO, error)

	// GetComments 返回帖子的全部评论扁平列表（含根评论与所有回复）。
	// - 旁路读缓存：命中直接返回，未命中回源数据库并回填缓存。
	// - 排序为 created_at 降序；层级结构由客户端按 ParentID 重建。
	GetComments(ctx context.Context, postID string) ([]*vo.CommentVO, error)

	// GetCommentsPaginated 返回根评论的分页视图。
	// - 分页只作用于根评论；响应同时附带该帖子的全部评论扁平列表，
	//   供客户端挂载各页根评论的回复。
	// - 分页响应、根评论计数、扁平列表三级缓存独立命中。
	GetCommentsPaginated(ctx context.Context, req *dto.PaginatedCommentsRequest) (*vo.CommentsPageVO, error)

	// DeleteComment 处理用户删除评论的操作。
	// - 仅作者本人可删除，他人操作返回 myErrors.ErrUnauthorized。
	// - 级联删除整棵回复子树（单事务），随后同步失效缓存、逐条回退
	//   统计计数并同步推送每条删除事件给本实例的实时订阅者，
	//   跨实例广播经扇出主题异步送达。
	DeleteComment(ctx context.Context, commentID uint64, userID string) error
}

// commentService 是 CommentService 接口的具体实现。
type commentService struct {
	commentRepo mysql.CommentRepository   // 负责评论的 MySQL 操作
	cache       redis.CommentCache        // 评论读缓存
	analytics   redis.AnalyticsRepository // 统计累加器
	kafkaSvc    EventPublisher            // 事件发布器（生产环境为 Kafka 生产者）
	broadcaster RealtimeBroadcaster       // 本实例的实时推送器
	logger      *core.ZapLogger           // 日志记录器
}

// NewCommentService 是 commentService 的构造函数，通过依赖注入初始化服务实例。
// - 这种方式便于单元测试和组件替换。
func NewCommentService(
	commentRepo mysql.CommentRepository,
	cache redis.CommentCache,
	analytics redis.AnalyticsRepository,
	kafkaSvc EventPublisher,
	broadcaster RealtimeBroadcaster,
	logger *core.ZapLogger,
) CommentService {
	return &commentService{
		commentRepo: commentRepo,
		cache:       cache,
		analytics:   analytics,
		kafkaSvc:    kafkaSvc,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// validateContent 校验评论正文：剔除首尾空白后非空，且长度不超过上限（按字符计）。
func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return myErrors.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > constant.CommentContentMaxLen {
		return myErrors.ErrContentTooLong
	}
	return nil
}

// buildAttachment 将附件 DTO 映射为内嵌实体，DTO 为 nil 时返回零值（表示无附件）。
func buildAttachment(dto *dto.CommentAttachmentDTO) entities.CommentAttachment {
	if dto == nil {
		return entities.CommentAttachment{}
	}
	return entities.CommentAttachment{
		Data:         dto.Data,
		FileName:     dto.Filename,
		MimeType:     dto.MimeType,
		OriginalName: dto.OriginalName,
		Size:         dto.Size,
		Processed:    false,
	}
}

// CreateComment 处理用户创建根评论的请求。
func (s *commentService) CreateComment(ctx context.Context, req *dto.CreateCommentRequest) (*vo.CommentVO, error) {
	// 1. 内容校验
	if err := validateContent(req.Content); err != nil {
		return nil, err
	}

	// 2. 组装并持久化评论实体
	comment := &entities.Comment{
		PostID:  req.PostID,
		Content: req.Content,
		Author: entities.CommentAuthor{
			UserID:   req.UserID,
			UserName: req.Username,
			Email:    req.Email,
			Homepage: req.Homepage,
		},
		Attachment: buildAttachment(req.Attachment),
	}
	if err := s.commentRepo.CreateComment(ctx, comment); err != nil {
		s.logger.Error("创建评论失败", zap.String("post_id", req.PostID), zap.Error(err))
		return nil, fmt.Errorf("创建评论失败: %w", err)
	}

	// 3. 后置处理：缓存失效、统计、异步事件
	s.afterCommentPersisted(ctx, comment)

	return vo.FromCommentEntity(comment), nil
}

// CreateReply 处理用户回复评论的请求。
func (s *commentService) CreateReply(ctx context.Context, req *dto.CreateReplyRequest) (*vo.CommentVO, error) {
	// 1. 内容校验
	if err := validateContent(req.Content); err != nil {
		return nil, err
	}

	// 2. 校验父评论存在且属于同一帖子
	parent, err := s.commentRepo.GetCommentByID(ctx, req.ParentID)
	if err != nil {
		if errors.Is(err, commonerrors.ErrRepoNotFound) {
			s.logger.Warn("回复的父评论不存在",
				zap.Uint64("parent_id", req.ParentID),
				zap.String("post_id", req.PostID))
			return nil, err
		}
		s.logger.Error("查询父评论失败", zap.Uint64("parent_id", req.ParentID), zap.Error(err))
		return nil, fmt.Errorf("查询父评论失败: %w", err)
	}
	if parent.PostID != req.PostID {
		s.logger.Warn("回复的父评论不属于目标帖子",
			zap.Uint64("parent_id", req.ParentID),
			zap.String("parent_post_id", parent.PostID),
			zap.String("post_id", req.PostID))
		return nil, myErrors.ErrParentMismatch
	}

	// 3. 组装并持久化回复实体
	parentID := parent.ID
	comment := &entities.Comment{
		PostID:   req.PostID,
		ParentID: &parentID,
		Content:  req.Content,
		Author: entities.CommentAuthor{
			UserID:   req.UserID,
			UserName: req.Username,
			Email:    req.Email,
			Homepage: req.Homepage,
		},
		Attachment: buildAttachment(req.Attachment),
	}
	if err := s.commentRepo.CreateComment(ctx, comment); err != nil {
		s.logger.Error("创建回复失败",
			zap.Uint64("parent_id", req.ParentID),
			zap.String("post_id", req.PostID),
			zap.Error(err))
		return nil, fmt.Errorf("创建回复失败: %w", err)
	}

	// 4. 后置处理：缓存失效、统计、异步事件
	s.afterCommentPersisted(ctx, comment)

	return vo.FromCommentEntity(comment), nil
}

// afterCommentPersisted 执行评论持久化成功后的公共副作用。
// - 缓存失效、统计与本实例的实时推送同步执行、失败只记日志：
//   均为尽力而为的数据，不应让已落库的写请求失败。
// - Kafka 事件异步发送，不阻塞响应（附件处理、回复通知以及
//   面向其他实例的扇出广播均由消费侧派生）。即使 Kafka 链路不可用，
//   本实例的订阅者也已通过同步推送收到事件。
func (s *commentService) afterCommentPersisted(ctx context.Context, comment *entities.Comment) {
	// 1. 同步失效该帖子的全部评论缓存
	if _, err := s.cache.InvalidatePost(ctx, comment.PostID); err != nil {
		s.logger.Error("失效评论缓存失败",
			zap.String("post_id", comment.PostID),
			zap.Error(err))
	}

	// 2. 统计累加
	if err := s.analytics.TrackCommentCreated(ctx, comment.PostID, comment.Author.UserID, comment.Author.UserName); err != nil {
		s.logger.Error("累加评论统计失败",
			zap.String("post_id", comment.PostID),
			zap.Error(err))
	}

	// 3. 组装评论创建事件（实时推送与 Kafka 复用同一份载荷）
	event := &events.CommentCreatedEvent{
		CommentID: comment.ID,
		PostID:    comment.PostID,
		ParentID:  comment.ParentID,
		Content:   comment.Content,
		Author: events.AuthorData{
			UserID:   comment.Author.UserID,
			Username: comment.Author.UserName,
			Email:    comment.Author.Email,
			Homepage: comment.Author.Homepage,
		},
	}
	if comment.Attachment.IsPresent() {
		event.Attachment = &events.AttachmentData{
			Data:         comment.Attachment.Data,
			Filename:     comment.Attachment.FileName,
			MimeType:     comment.Attachment.MimeType,
			OriginalName: comment.Attachment.OriginalName,
			Size:         comment.Attachment.Size,
		}
	}

	// 4. 同步推送给本实例的订阅者（跨实例由扇出主题覆盖）
	s.broadcaster.BroadcastNewComment(events.BroadcastCommentData{
		ID:         comment.ID,
		PostID:     comment.PostID,
		ParentID:   comment.ParentID,
		Content:    comment.Content,
		Author:     &event.Author,
		Attachment: event.Attachment,
	})

	// 5. 异步发送 Kafka 评论创建事件
	go func(ev *events.CommentCreatedEvent) {
		bgCtx := context.Background() // 为后台 goroutine 创建新的上下文
		if kafkaErr := s.kafkaSvc.SendCommentCreatedEvent(bgCtx, ev); kafkaErr != nil {
			s.logger.Error("发送 Kafka 评论创建事件失败",
				zap.Error(kafkaErr),
				zap.Uint64("comment_id", ev.CommentID))
		}
	}(event)
}

// GetComments 实现帖子评论扁平列表的旁路读缓存。
func (s *commentService) GetComments(ctx context.Context, postID string) ([]*vo.CommentVO, error) {
	// 1. 先查缓存
	cached, err := s.cache.GetCommentList(ctx, postID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, myErrors.ErrCacheMiss) {
		// 缓存不可用按未命中处理，读请求继续回源
		s.logger.Warn("读取评论列表缓存失败，回源数据库",
			zap.String("post_id", postID),
			zap.Error(err))
	}

	// 2. 回源数据库
	comments, err := s.commentRepo.GetCommentsByPostID(ctx, postID)
	if err != nil {
		s.logger.Error("查询帖子评论失败", zap.String("post_id", postID), zap.Error(err))
		return nil, fmt.Errorf("查询帖子评论失败: %w", err)
	}
	result := vo.FromCommentEntities(comments)

	// 3. 回填缓存
	if setErr := s.cache.SetCommentList(ctx, postID, result); setErr != nil {
		s.logger.Warn("回填评论列表缓存失败",
			zap.String("post_id", postID),
			zap.Error(setErr))
	}

	return result, nil
}

// GetCommentsPaginated 实现根评论分页与三级缓存。
func (s *commentService) GetCommentsPaginated(ctx context.Context, req *dto.PaginatedCommentsRequest) (*vo.CommentsPageVO, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = constant.DefaultPageLimit
	}

	// 1. 整页缓存命中则直接返回
	cached, err := s.cache.GetPage(ctx, req.PostID, page, limit)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, myErrors.ErrCacheMiss) {
		s.logger.Warn("读取分页响应缓存失败，回源数据库",
			zap.String("post_id", req.PostID),
			zap.Error(err))
	}

	// 2. 根评论计数（带独立缓存）
	total, err := s.rootCount(ctx, req.PostID)
	if err != nil {
		return nil, err
	}

	// 3. 当前页根评论
	offset := (page - 1) * limit
	roots, err := s.commentRepo.GetRootCommentsPaginated(ctx, req.PostID, offset, limit)
	if err != nil {
		s.logger.Error("分页查询根评论失败",
			zap.String("post_id", req.PostID),
			zap.Int("page", page),
			zap.Error(err))
		return nil, fmt.Errorf("分页查询根评论失败: %w", err)
	}

	// 4. 全部评论扁平列表（复用扁平列表缓存）
	allComments, err := s.GetComments(ctx, req.PostID)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	pageVO := &vo.CommentsPageVO{
		Comments:    vo.FromCommentEntities(roots),
		AllComments: allComments,
		TotalCount:  total,
		Page:        page,
		Limit:       limit,
		TotalPages:  totalPages,
	}

	// 5. 回填分页响应缓存
	if setErr := s.cache.SetPage(ctx, req.PostID, page, limit, pageVO); setErr != nil {
		s.logger.Warn("回填分页响应缓存失败",
			zap.String("post_id", req.PostID),
			zap.Error(setErr))
	}

	return pageVO, nil
}

// rootCount 返回根评论总数，优先读计数缓存。
func (s *commentService) rootCount(ctx context.Context, postID string) (int64, error) {
	count, err := s.cache.GetRootCount(ctx, postID)
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, myErrors.ErrCacheMiss) {
		s.logger.Warn("读取根评论计数缓存失败，回源数据库",
			zap.String("post_id", postID),
			zap.Error(err))
	}

	count, err = s.commentRepo.CountRootComments(ctx, postID)
	if err != nil {
		s.logger.Error("统计根评论总数失败", zap.String("post_id", postID), zap.Error(err))
		return 0, fmt.Errorf("统计根评论总数失败: %w", err)
	}

	if setErr := s.cache.SetRootCount(ctx, postID, count); setErr != nil {
		s.logger.Warn("回填根评论计数缓存失败",
			zap.String("post_id", postID),
			zap.Error(setErr))
	}
	return count, nil
}

// DeleteComment 实现评论的级联删除。
func (s *commentService) DeleteComment(ctx context.Context, commentID uint64, userID string) error {
	// 1. 读取评论并校验归属
	comment, err := s.commentRepo.GetCommentByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, commonerrors.ErrRepoNotFound) {
			s.logger.Warn("尝试删除不存在的评论", zap.Uint64("comment_id", commentID))
			return err
		}
		s.logger.Error("查询待删除评论失败", zap.Uint64("comment_id", commentID), zap.Error(err))
		return fmt.Errorf("查询待删除评论失败: %w", err)
	}
	if comment.Author.UserID != userID {
		s.logger.Warn("非作者尝试删除评论",
			zap.Uint64("comment_id", commentID),
			zap.String("author_id", comment.Author.UserID),
			zap.String("user_id", userID))
		return myErrors.ErrUnauthorized
	}

	// 2. 单事务级联删除整棵回复子树
	deleted, err := s.commentRepo.DeleteCommentTree(ctx, commentID)
	if err != nil {
		s.logger.Error("级联删除评论失败", zap.Uint64("comment_id", commentID), zap.Error(err))
		return fmt.Errorf("级联删除评论失败: %w", err)
	}

	// 3. 同步失效该帖子的全部评论缓存
	if _, cacheErr := s.cache.InvalidatePost(ctx, comment.PostID); cacheErr != nil {
		s.logger.Error("失效评论缓存失败",
			zap.String("post_id", comment.PostID),
			zap.Error(cacheErr))
	}

	// 4. 逐条回退统计：每条被删除的评论按其自身作者归因
	for _, c := range deleted {
		if trackErr := s.analytics.TrackCommentDeleted(ctx, c.PostID, c.Author.UserID, c.Author.UserName); trackErr != nil {
			s.logger.Error("回退评论统计失败",
				zap.Uint64("comment_id", c.ID),
				zap.Error(trackErr))
		}
	}

	// 5. 组装删除事件与逐条广播载荷
	deletedEvent := &events.CommentDeletedEvent{
		CommentID: comment.ID,
		PostID:    comment.PostID,
		Author: events.AuthorData{
			UserID:   comment.Author.UserID,
			Username: comment.Author.UserName,
			Email:    comment.Author.Email,
			Homepage: comment.Author.Homepage,
		},
	}
	broadcasts := make([]*events.BroadcastEnvelope, 0, len(deleted))
	for _, c := range deleted {
		broadcasts = append(broadcasts, &events.BroadcastEnvelope{
			Type: events.TypeDeletedComment,
			Data: events.BroadcastCommentData{
				ID:       c.ID,
				PostID:   c.PostID,
				ParentID: c.ParentID,
			},
		})
	}

	// 6. 同步推送给本实例的订阅者，每条被删除的评论各一条
	for _, envelope := range broadcasts {
		s.broadcaster.BroadcastDeletedComment(envelope.Data)
	}

	// 7. 异步发送删除事件并向扇出主题发布每条广播
	go func(ev *events.CommentDeletedEvent, envelopes []*events.BroadcastEnvelope) {
		bgCtx := context.Background()
		if kafkaErr := s.kafkaSvc.SendCommentDeletedEvent(bgCtx, ev); kafkaErr != nil {
			s.logger.Error("发送 Kafka 评论删除事件失败",
				zap.Error(kafkaErr),
				zap.Uint64("comment_id", ev.CommentID))
		}
		for _, envelope := range envelopes {
			if kafkaErr := s.kafkaSvc.PublishBroadcast(bgCtx, "comment.deleted", envelope); kafkaErr != nil {
				s.logger.Error("发布评论删除广播失败",
					zap.Error(kafkaErr),
					zap.Uint64("comment_id", envelope.Data.ID))
			}
		}
	}(deletedEvent, broadcasts)

	s.logger.Info("评论级联删除完成",
		zap.Uint64("comment_id", commentID),
		zap.Int("deleted_count", len(deleted)))
	return nil
}
