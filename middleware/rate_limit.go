package middleware

import (
	"net/http"
	"strconv"

	"github.com/Xushengqwer/go-common/constants"
	"github.com/Xushengqwer/go-common/response"
	"github.com/Xushengqwer/go-common/core"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	commentRedis "github.com/Xushengqwer/comment_service/repo/redis"
)

// CommentCreateRateLimitAction 是评论创建限流的动作标识，进入限流 Key。
const CommentCreateRateLimitAction = "comment:create"

// RateLimitMiddleware 返回一个用于评论创建类端点的限流中间件。
// - 限流主体优先取网关透传的用户 ID，匿名请求回退到客户端 IP。
// - 每次判定都会写回 X-RateLimit-* 响应头，拒绝时返回 429。
// - fail-open: 限流器自身出错（如 Redis 不可用）时记日志并放行，
//   限流保护的失效不应放大为服务不可用。
func RateLimitMiddleware(limiter commentRedis.RateLimiter, logger *core.ZapLogger, limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.ClientIP()
		if userIDValue, exists := c.Get(string(constants.UserIDKey)); exists {
			if userID, ok := userIDValue.(string); ok && userID != "" {
				subject = userID
			}
		}

		result, err := limiter.Allow(c.Request.Context(), CommentCreateRateLimitAction, subject)
		if err != nil {
			logger.Error("限流判定失败，本次请求放行",
				zap.String("subject", subject),
				zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			response.RespondError(c, http.StatusTooManyRequests, response.ErrCodeClientInvalidInput, "评论太频繁了，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
