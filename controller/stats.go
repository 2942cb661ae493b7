package controller

import (
	"net/http"
	"strconv"

	"github.com/Xushengqwer/go-common/response"
	"github.com/gin-gonic/gin"

	"github.com/Xushengqwer/comment_service/service"
)

// StatsController 定义统计查询控制器的结构体
type StatsController struct {
	statsService service.StatsService
}

// NewStatsController 构造函数，用于创建 StatsController 实例
func NewStatsController(statsService service.StatsService) *StatsController {
	return &StatsController{
		statsService: statsService,
	}
}

// parseLimit 解析排行榜的 limit 查询参数，缺省 10，上限 100。
func parseLimit(c *gin.Context) (int64, bool) {
	limitStr := c.DefaultQuery("limit", "10")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit < 1 || limit > 100 {
		response.RespondError(c, http.StatusBadRequest, response.ErrCodeClientInvalidInput, "无效的 limit，必须是 1-100 的整数")
		return 0, false
	}
	return limit, true
}

// GetCommentStats 获取全局评论统计。
// @Summary      获取评论统计
// @Description  返回全局评论统计：总量、今日/本周/本月增量、评论者排行榜与热门帖子排行榜。
// @Tags         stats (统计)
// @Accept       json
// @Produce      json
// @Success      200 {object} vo.CommentStatsResponseWrapper "成功响应，包含聚合统计视图"
// @Failure      500 {object} vo.BaseResponseWrapper "服务器内部错误"
// @Router       /api/v1/stats/comments [get]
func (ctrl *StatsController) GetCommentStats(c *gin.Context) {
	stats, err := ctrl.statsService.GetCommentStats(c.Request.Context())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, response.ErrCodeServerInternal, "获取评论统计失败: "+err.Error())
		return
	}
	response.RespondSuccess(c, stats, "评论统计获取成功")
}

// GetTopCommenters 获取评论者排行榜。
// @Summary      获取评论者排行榜
// @Description  按累计评论数倒序返回评论者排行榜。
// @Tags         stats (统计)
// @Accept       json
// @Produce      json
// @Param        limit query int false "返回条数" format(int32) minimum(1) maximum(100) default(10)
// @Success      200 {object} vo.TopCommentersResponseWrapper "成功响应，包含排行榜条目"
// @Failure      400 {object} vo.BaseResponseWrapper "无效的请求参数"
// @Failure      500 {object} vo.BaseResponseWrapper "服务器内部错误"
// @Router       /api/v1/stats/top-commenters [get]
func (ctrl *StatsController) GetTopCommenters(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	commenters, err := ctrl.statsService.GetTopCommenters(c.Request.Context(), limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, response.ErrCodeServerInternal, "获取评论者排行榜失败: "+err.Error())
		return
	}
	response.RespondSuccess(c, commenters, "评论者排行榜获取成功")
}

// GetPopularPosts 获取热门帖子排行榜。
// @Summary      获取热门帖子排行榜
// @Description  按累计评论数倒序返回热门帖子排行榜，优先读定时任务生成的快照缓存。
// @Tags         stats (统计)
// @Accept       json
// @Produce      json
// @Param        limit query int false "返回条数" format(int32) minimum(1) maximum(100) default(10)
// @Success      200 {object} vo.PopularPostsResponseWrapper "成功响应，包含排行榜条目"
// @Failure      400 {object} vo.BaseResponseWrapper "无效的请求参数"
// @Failure      500 {object} vo.BaseResponseWrapper "服务器内部错误"
// @Router       /api/v1/stats/popular-posts [get]
func (ctrl *StatsController) GetPopularPosts(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	posts, err := ctrl.statsService.GetPopularPosts(c.Request.Context(), limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, response.ErrCodeServerInternal, "获取热门帖子排行榜失败: "+err.Error())
		return
	}
	response.RespondSuccess(c, posts, "热门帖子排行榜获取成功")
}

// GetPageViewStats 获取帖子浏览统计。
// @Summary      获取帖子浏览统计
// @Description  返回指定帖子的累计浏览量与今日独立访客数。
// @Tags         stats (统计)
// @Accept       json
// @Produce      json
// @Param        postId path string true "帖子ID" maxLength(64)
// @Success      200 {object} vo.PageViewStatsResponseWrapper "成功响应，包含浏览统计"
// @Failure      400 {object} vo.BaseResponseWrapper "无效的请求参数"
// @Failure      500 {object} vo.BaseResponseWrapper "服务器内部错误"
// @Router       /api/v1/stats/views/{postId} [get]
func (ctrl *StatsController) GetPageViewStats(c *gin.Context) {
	postID := c.Param("postId")
	if postID == "" {
		response.RespondError(c, http.StatusBadRequest, response.ErrCodeClientInvalidInput, "postId 是必需的")
		return
	}

	stats, err := ctrl.statsService.GetPageViewStats(c.Request.Context(), postID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, response.ErrCodeServerInternal, "获取帖子浏览统计失败: "+err.Error())
		return
	}
	response.RespondSuccess(c, stats, "帖子浏览统计获取成功")
}

// RegisterRoutes 注册 StatsController 的路由
func (ctrl *StatsController) RegisterRoutes(group *gin.RouterGroup) {
	stats := group.Group("/stats")
	{
		stats.GET("/comments", ctrl.GetCommentStats)       // GET /api/v1/stats/comments
		stats.GET("/top-commenters", ctrl.GetTopCommenters) // GET /api/v1/stats/top-commenters
		stats.GET("/popular-posts", ctrl.GetPopularPosts)  // GET /api/v1/stats/popular-posts
		stats.GET("/views/:postId", ctrl.GetPageViewStats) // GET /api/v1/stats/views/:postId
	}
}
