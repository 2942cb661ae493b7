package router

import (
	"net/http"
	"time"

	"github.com/Xushengqwer/go-common/core"
	commonMiddleware "github.com/Xushengqwer/go-common/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	appConfig "github.com/Xushengqwer/comment_service/config"
	"github.com/Xushengqwer/comment_service/constant"
	"github.com/Xushengqwer/comment_service/controller"
	"github.com/Xushengqwer/comment_service/realtime"
)

// SetupRouter 仅负责配置 Gin 引擎、中间件和路由注册。
func SetupRouter(
	logger *core.ZapLogger,
	cfg *appConfig.CommentConfig,
	commentController *controller.CommentController,
	statsController *controller.StatsController,
	wsHandler *realtime.WSHandler,
) *gin.Engine {
	logger.Info("开始设置 Gin 路由...")

	// 使用 gin.New() 而不是 gin.Default()，因为我们要自定义 Recovery 和 Logger
	router := gin.New()

	// 1. OTel Middleware (最先，处理追踪上下文和 Span)
	router.Use(otelgin.Middleware(constant.ServiceName))

	// 2. Panic Recovery (捕获后续中间件和 handler 的 panic)
	router.Use(commonMiddleware.ErrorHandlingMiddleware(logger))

	// 3. Request Logger (记录访问日志，需要 TraceID)
	if baseLogger := logger.Logger(); baseLogger != nil {
		router.Use(commonMiddleware.RequestLoggerMiddleware(baseLogger))
	} else {
		logger.Warn("无法获取底层的 *zap.Logger，跳过 RequestLoggerMiddleware 注册")
	}

	// --- 注册 WebSocket 实时推送路由 ---
	// 长连接必须在请求超时中间件生效之前注册，否则会被超时中间件掐断
	wsHandler.RegisterRoutes(router)
	logger.Info("WebSocket endpoint registered at /ws/comments")

	// 4. Request Timeout (超时控制)
	requestTimeout := time.Duration(cfg.ServerConfig.RequestTimeout) * time.Second
	router.Use(commonMiddleware.RequestTimeoutMiddleware(logger, requestTimeout))

	// 5. User Context (提取网关透传的用户信息)
	router.Use(commonMiddleware.UserContextMiddleware())

	logger.Debug("已注册全局中间件")

	// --- 创建 API 版本分组 ---
	v1 := router.Group("/api/v1")
	logger.Debug("已创建 API/v1 分组")

	// --- 注册控制器路由 ---
	commentController.RegisterRoutes(v1)
	statsController.RegisterRoutes(v1)
	logger.Info("所有控制器路由已注册到 /api/v1 分组")

	// --- 注册 Swagger UI 路由 ---
	// 访问 /swagger/index.html 即可看到 Swagger UI 界面
	swaggerURL := ginSwagger.URL("/swagger/doc.json") // 指定 swagger.json 的访问路径
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, swaggerURL))
	logger.Info("Swagger UI endpoint registered at /swagger/*any")

	// --- 健康检查等路由 ---
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	logger.Info("Gin 路由器设置完成")
	return router
}
