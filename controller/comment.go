package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Xushengqwer/go-common/commonerrors"
	"github.com/Xushengqwer/go-common/response" // 通用响应包
	"github.com/gin-gonic/gin"

	"github.com/Xushengqwer/comment_service/models/dto"
	"github.com/Xushengqwer/comment_service/myErrors"
	"github.com/Xushengqwer/comment_service/service"
)

// CommentController 定义评论控制器的结构体
type CommentController struct {
	commentService service.CommentService // 服务层接口，通过依赖注入传入
	statsService   service.StatsService   // 浏览统计在分页读取时顺带记录
	rateLimit      gin.HandlerFunc        // 创建类端点的限流守卫，可为 nil
}

// NewCommentController 构造函数，用于创建 CommentController 实例
func NewCommentController(commentService service.CommentService, statsService service.StatsService, rateLimit gin.HandlerFunc) *CommentController {
	return &CommentController{
		commentService: commentService,
		statsService:   statsService,
		rateLimit:      rateLimit,
	}
}

// respondCreateError 统一映射创建类请求的服务层错误。
func respondCreateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, myErrors.ErrEmptyContent):
		response.RespondError(c, http.StatusBadRequest, response.ErrCodeClientInvalidInput, "评论内容不能为空")
	case errors.Is(err, myErrors.ErrContentTooLong):
		response.RespondError(c, http.StatusBadRequest, response.ErrCodeClientInvalidInput, "评论内容超出长度限制")
	case errors.Is(err, myErrors.ErrParentMismatch):
		response.RespondError(c, http.StatusBadRequest, response.ErrCodeClientInvalidInput, "父评论不属于目标帖子")
	case errors.Is(err, commonerrors.ErrRepoNotFound):
		response.RespondError(c, http.StatusNotFound, response.ErrCodeClientResourceNotFound, "父评论不存在")
	default:
		response.RespondError(c, http.StatusInternalServerError, response.ErrCodeServerInternal, "创建评论失败: "+err.Error())
	}
}

// CreateComment 处理创建根评论的 HTTP 请求。
// @Summary      创建评论
// @Description  在指定帖子下创建一条根评论，支持携带 base64 编码的附件。附件的校验与上传异步完成。
// @Tags         comments (评论)
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateCommentRequest true "评论创建请求"
// @Success      200 {object} vo.CommentResponseWrapper "评论创建成功"
// @Failure      400 {object} vo.BaseResponseWrapper "无效的请求负载或评论内容不合法"
// @Failure      429 {object} vo.BaseResponseWrapper "评论频率超出限制"
// @Failure      500 {object} vo.BaseResponseWrapper "创建评论时发生内部服务器错误"
// @Router       /api/v1/comments [post]
func (ctrl *CommentController) CreateComment(c *gin.Context) {
	// 1. 绑定并验证请求体
	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, response.ErrCodeClientInvalidInput, "无效的请求负载: "+err.Error())
		return
	}

	// 2. 调用服务层方法
	commentVO, err := ctrl.commentService.CreateComment(c.Request.Context(), &req)
	if err != nil {
		respondCreateError(c, err)
		return
	}

	// 3. 成功响应
	response.RespondSuccess(c, commentVO, "评论创建成功")
}

// CreateReply 处理回复评论的 HTTP 请求。
// @Summary      回复评论
// @Description  回复指定评论。父评论必须存在且与请求的帖子一致，层级深度不受限制。
// @Tags         comments (评论)
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateReplyRequest true "回复创建请求"
// @Success      200 {object} vo.CommentResponseWrapper "回复创建成功"
// @Failure      400 {object} vo.BaseResponseWrapper "无效的请求负载或父评论不属于目标帖子"
// @Failure      404 {object} vo.BaseResponseWrapper "父评论不存在"
// @Failure      429 {object} vo.BaseResponseWrapper "评论频率超出限制"
// @Failure      500 {object} vo.BaseResponseWrapper "创建回复时发生内部服务器错误"
// @Router       /api/v1/comments/reply [post]
func (ctrl *CommentController) CreateReply(c *gin.Context) {
	var req dto.CreateReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, response.ErrCodeClientInvalidInput, "无效的请求负载: "+err.Error())
		return
	}

	commentVO, err := ctrl.commentService.CreateReply(c.Request.Context(), &req)
	if err != nil {
		respondCreateError(c, err)
		return
	}

	response.RespondSuccess(c, commentVO, "回复创建成功")
}

// GetComments 获取帖子的全部评论扁平列表。
// @Summary      获取帖子评论列表
// @Description  返回指定帖子的全部评论（根评论与所有回复）的扁平列表，按创建时间倒序。层级结构由客户端按 parentId 重建。
// @Tags         comments (评论)
// @Accept       json
// @Produce      json
// @Param        postId query string true "帖子ID" maxLength(64)
// @Success      200 {object} vo.CommentListResponseWrapper "成功响应，包含评论扁平列表"
// @Failure      400 {object} vo.BaseResponseWrapper "无效的请求参数"
// @Failure      500 {object} vo.BaseResponseWrapper "服务器内部错误"
// @Router       /api/v1/comments [get]
func (ctrl *CommentController) GetComments(c *gin.Context) {
	var req dto.ListCommentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, response.ErrCodeClientInvalidInput, "无效的查询参数: "+err.Error())
		return
	}

	comments, err := ctrl.commentService.GetComments(c.Request.Context(), req.PostID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, response.ErrCodeServerInternal, "获取评论列表失败: "+err.Error())
		return
	}

	response.RespondSuccess(c, comments, "评论列表获取成功")
}

// GetCommentsPaginated 获取帖子根评论的分页视图。
// @Summary      分页获取帖子评论
// @Description  对根评论分页，响应同时附带帖子的全部评论扁平列表供客户端挂载回复。访问会记录一次帖子浏览。
// @Tags         comments (评论)
// @Accept       json
// @Produce      json
// @Param        postId query string true "帖子ID" maxLength(64)
// @Param        page query int false "页码 (从1开始)" format(int32) minimum(1) default(1)
// @Param        limit query int false "每页根评论数量" format(int32) minimum(1) maximum(100) default(25)
// @Success      200 {object} vo.CommentsPageResponseWrapper "成功响应，包含当前页根评论与全量评论列表"
// @Failure      400 {object} vo.BaseResponseWrapper "无效的请求参数"
// @Failure      500 {object} vo.BaseResponseWrapper "服务器内部错误"
// @Router       /api/v1/comments/paginated [get]
func (ctrl *CommentController) GetCommentsPaginated(c *gin.Context) {
	var req dto.PaginatedCommentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, response.ErrCodeClientInvalidInput, "无效的查询参数: "+err.Error())
		return
	}

	pageVO, err := ctrl.commentService.GetCommentsPaginated(c.Request.Context(), &req)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, response.ErrCodeServerInternal, "分页获取评论失败: "+err.Error())
		return
	}

	// 分页读取视为一次帖子浏览，以客户端 IP 作为访客标识
	ctrl.statsService.TrackPageView(c.Request.Context(), req.PostID, c.ClientIP())

	response.RespondSuccess(c, pageVO, "评论分页获取成功")
}

// DeleteComment 处理删除评论的 HTTP 请求。
// @Summary      删除评论
// @Description  删除指定评论及其整棵回复子树。仅评论作者本人可删除，作者身份以 userId 查询参数声明（网关已完成认证）。
// @Tags         comments (评论)
// @Accept       json
// @Produce      json
// @Param        id path uint64 true "评论ID" format(uint64) minimum(1)
// @Param        userId query string true "操作者用户ID" maxLength(64)
// @Success      200 {object} vo.BaseResponseWrapper "评论删除成功"
// @Failure      400 {object} vo.BaseResponseWrapper "无效的评论 ID 格式"
// @Failure      401 {object} vo.BaseResponseWrapper "非评论作者，无权删除"
// @Failure      404 {object} vo.BaseResponseWrapper "评论不存在"
// @Failure      500 {object} vo.BaseResponseWrapper "删除评论时发生内部服务器错误"
// @Router       /api/v1/comments/{id} [delete]
func (ctrl *CommentController) DeleteComment(c *gin.Context) {
	// 1. 解析路径参数
	commentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || commentID == 0 {
		response.RespondError(c, http.StatusBadRequest, response.ErrCodeClientInvalidInput, "无效的评论 ID 格式")
		return
	}

	userID := c.Query("userId")
	if userID == "" {
		response.RespondError(c, http.StatusBadRequest, response.ErrCodeClientInvalidInput, "userId 是必需的")
		return
	}

	// 2. 调用服务层方法
	if err := ctrl.commentService.DeleteComment(c.Request.Context(), commentID, userID); err != nil {
		switch {
		case errors.Is(err, commonerrors.ErrRepoNotFound):
			response.RespondError(c, http.StatusNotFound, response.ErrCodeClientResourceNotFound, "评论不存在")
		case errors.Is(err, myErrors.ErrUnauthorized):
			response.RespondError(c, http.StatusUnauthorized, response.ErrCodeClientUnauthorized, "只有评论作者可以删除该评论")
		default:
			response.RespondError(c, http.StatusInternalServerError, response.ErrCodeServerInternal, "删除评论失败: "+err.Error())
		}
		return
	}

	// 3. 成功响应
	response.RespondSuccess[any](c, nil, "评论删除成功")
}

// RegisterRoutes 注册 CommentController 的路由
func (ctrl *CommentController) RegisterRoutes(group *gin.RouterGroup) {
	comments := group.Group("/comments")
	{
		if ctrl.rateLimit != nil {
			comments.POST("", ctrl.rateLimit, ctrl.CreateComment)       // POST /api/v1/comments
			comments.POST("/reply", ctrl.rateLimit, ctrl.CreateReply)   // POST /api/v1/comments/reply
		} else {
			comments.POST("", ctrl.CreateComment)
			comments.POST("/reply", ctrl.CreateReply)
		}
		comments.GET("", ctrl.GetComments)                   // GET /api/v1/comments
		comments.GET("/paginated", ctrl.GetCommentsPaginated) // GET /api/v1/comments/paginated
		comments.DELETE("/:id", ctrl.DeleteComment)          // DELETE /api/v1/comments/:id
	}
}
