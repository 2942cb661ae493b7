package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Xushengqwer/go-common/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Xushengqwer/comment_service/constant"
	"github.com/Xushengqwer/comment_service/models/vo"
	"github.com/Xushengqwer/comment_service/myErrors"
)

// CommentCache 定义了评论相关的缓存操作接口。
// - 目标: 为评论引擎提供旁路读缓存（read-through），加速热点帖子的评论读取。
// - 缓存严格作为建议性数据：任何未命中/不可用都由上层回源数据库，
//   永远不会因为缓存故障而失败一次读请求。
// - 缓存未命中统一返回 myErrors.ErrCacheMiss，便于上层与测试观测命中/未命中。
type CommentCache interface {
	// GetCommentList 读取帖子评论扁平列表缓存。
	// - 未命中返回 myErrors.ErrCacheMiss。
	GetCommentList(ctx context.Context, postID string) ([]*vo.CommentVO, error)

	// SetCommentList 写入帖子评论扁平列表缓存（TTL 见 constant.CommentListCacheTTL）。
	SetCommentList(ctx context.Context, postID string, comments []*vo.CommentVO) error

	// GetPage 读取分页响应缓存，复合键 (postID, page, limit)。
	// - 未命中返回 myErrors.ErrCacheMiss。
	GetPage(ctx context.Context, postID string, page, limit int) (*vo.CommentsPageVO, error)

	// SetPage 写入分页响应缓存（TTL 见 constant.CommentPageCacheTTL）。
	SetPage(ctx context.Context, postID string, page, limit int, pageVO *vo.CommentsPageVO) error

	// GetRootCount 读取根评论计数缓存。
	// - 未命中返回 myErrors.ErrCacheMiss。
	GetRootCount(ctx context.Context, postID string) (int64, error)

	// SetRootCount 写入根评论计数缓存（TTL 见 constant.CommentCountCacheTTL）。
	SetRootCount(ctx context.Context, postID string, count int64) error

	// InvalidatePost 批量失效指定帖子的全部评论缓存
	// （扁平列表、所有分页响应、根评论计数），返回删除的 Key 数量。
	// - 调用方必须在持久化写入成功之后、响应返回之前同步调用。
	InvalidatePost(ctx context.Context, postID string) (int64, error)
}

// commentCache 是 CommentCache 接口的 Redis 实现。
type commentCache struct {
	redisClient *redis.Client
	logger      *core.ZapLogger
}

// NewCommentCache 是 commentCache 的构造函数。
func NewCommentCache(redisClient *redis.Client, logger *core.ZapLogger) CommentCache {
	return &commentCache{
		redisClient: redisClient,
		logger:      logger,
	}
}

// listKey 构造扁平列表缓存 Key，如 "comments:post:123:all"。
func listKey(postID string) string {
	return constant.CommentListCachePrefix + postID + ":all"
}

// pageKey 构造分页响应缓存 Key，如 "comments:paginated:123:2:25"。
func pageKey(postID string, page, limit int) string {
	return fmt.Sprintf("%s%s:%d:%d", constant.CommentPageCachePrefix, postID, page, limit)
}

// countKey 构造根评论计数缓存 Key，如 "comments:count:123"。
func countKey(postID string) string {
	return constant.CommentCountCachePrefix + postID
}

// getJSON 读取并反序列化一个 JSON 缓存值，未命中返回 myErrors.ErrCacheMiss。
func (c *commentCache) getJSON(ctx context.Context, key string, dest interface{}) error {
	raw, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return myErrors.ErrCacheMiss
		}
		return fmt.Errorf("读取缓存(key: %s)失败: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		// 反序列化失败说明缓存数据被污染，按未命中处理并删掉脏数据。
		c.logger.Warn("缓存值反序列化失败，视为未命中并删除",
			zap.String("key", key),
			zap.Error(err))
		c.redisClient.Del(ctx, key)
		return myErrors.ErrCacheMiss
	}
	return nil
}

// setJSON 序列化并写入一个 JSON 缓存值。
func (c *commentCache) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化缓存值(key: %s)失败: %w", key, err)
	}
	if err := c.redisClient.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("写入缓存(key: %s)失败: %w", key, err)
	}
	return nil
}

func (c *commentCache) GetCommentList(ctx context.Context, postID string) ([]*vo.CommentVO, error) {
	var comments []*vo.CommentVO
	if err := c.getJSON(ctx, listKey(postID), &comments); err != nil {
		return nil, err
	}
	c.logger.Debug("评论列表缓存命中", zap.String("postID", postID))
	return comments, nil
}

func (c *commentCache) SetCommentList(ctx context.Context, postID string, comments []*vo.CommentVO) error {
	return c.setJSON(ctx, listKey(postID), comments, constant.CommentListCacheTTL)
}

func (c *commentCache) GetPage(ctx context.Context, postID string, page, limit int) (*vo.CommentsPageVO, error) {
	var pageVO vo.CommentsPageVO
	if err := c.getJSON(ctx, pageKey(postID, page, limit), &pageVO); err != nil {
		return nil, err
	}
	c.logger.Debug("分页响应缓存命中",
		zap.String("postID", postID),
		zap.Int("page", page),
		zap.Int("limit", limit))
	return &pageVO, nil
}

func (c *commentCache) SetPage(ctx context.Context, postID string, page, limit int, pageVO *vo.CommentsPageVO) error {
	return c.setJSON(ctx, pageKey(postID, page, limit), pageVO, constant.CommentPageCacheTTL)
}

func (c *commentCache) GetRootCount(ctx context.Context, postID string) (int64, error) {
	raw, err := c.redisClient.Get(ctx, countKey(postID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, myErrors.ErrCacheMiss
		}
		return 0, fmt.Errorf("读取根评论计数缓存(postID: %s)失败: %w", postID, err)
	}
	count, parseErr := strconv.ParseInt(raw, 10, 64)
	if parseErr != nil {
		c.logger.Warn("根评论计数缓存值无法解析，视为未命中",
			zap.String("postID", postID),
			zap.String("raw", raw))
		c.redisClient.Del(ctx, countKey(postID))
		return 0, myErrors.ErrCacheMiss
	}
	return count, nil
}

func (c *commentCache) SetRootCount(ctx context.Context, postID string, count int64) error {
	err := c.redisClient.Set(ctx, countKey(postID), strconv.FormatInt(count, 10), constant.CommentCountCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("写入根评论计数缓存(postID: %s)失败: %w", postID, err)
	}
	return nil
}

// InvalidatePost 实现按模式的批量缓存失效。
// 使用 SCAN 而非 KEYS 遍历匹配的 Key，避免在大键空间上阻塞 Redis。
func (c *commentCache) InvalidatePost(ctx context.Context, postID string) (int64, error) {
	var deleted int64
	for _, pattern := range constant.CommentCacheInvalidatePatterns(postID) {
		n, err := c.deleteByPattern(ctx, pattern)
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	c.logger.Debug("评论缓存已失效",
		zap.String("postID", postID),
		zap.Int64("deletedKeys", deleted))
	return deleted, nil
}

// deleteByPattern 按 glob 模式删除 Key，返回删除数量。
func (c *commentCache) deleteByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	var cursor uint64
	for {
		keys, next, err := c.redisClient.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("SCAN 匹配缓存 Key(pattern: %s)失败: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, delErr := c.redisClient.Del(ctx, keys...).Result()
			if delErr != nil {
				return deleted, fmt.Errorf("删除缓存 Key(pattern: %s)失败: %w", pattern, delErr)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}
