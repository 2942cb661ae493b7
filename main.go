package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/Xushengqwer/comment_service/docs" // 确保导入了 docs 包

	// 导入项目包
	appConfig "github.com/Xushengqwer/comment_service/config"
	"github.com/Xushengqwer/comment_service/constant"
	"github.com/Xushengqwer/comment_service/controller"
	"github.com/Xushengqwer/comment_service/dependencies"
	"github.com/Xushengqwer/comment_service/middleware"
	"github.com/Xushengqwer/comment_service/mq/consumer"
	"github.com/Xushengqwer/comment_service/mq/producer"
	"github.com/Xushengqwer/comment_service/realtime"
	"github.com/Xushengqwer/comment_service/repo/mysql"
	redisrepo "github.com/Xushengqwer/comment_service/repo/redis"
	"github.com/Xushengqwer/comment_service/router"
	"github.com/Xushengqwer/comment_service/service"
	"github.com/Xushengqwer/comment_service/tasks"

	// 导入公共模块
	sharedCore "github.com/Xushengqwer/go-common/core"
	sharedTracing "github.com/Xushengqwer/go-common/core/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// @title           Comment Service API
// @version         1.0
// @description     评论服务，提供评论发布、回复、分页读取、级联删除、统计与实时推送等功能。
// @termsOfService  http://swagger.io/terms/

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8085

// @schemes http https
func main() {
	// --- 配置和基础设置 ---
	var configFile string
	flag.StringVar(&configFile, "config", "config/config.development.yaml", "Path to configuration file")
	flag.Parse()

	// 1. 加载配置
	var cfg appConfig.CommentConfig
	if err := sharedCore.LoadConfig(configFile, &cfg); err != nil {
		log.Fatalf("FATAL: 加载配置失败 (%s): %v", configFile, err)
	}

	// 打印最终生效的配置以供调试
	configBytes, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		log.Fatalf("无法序列化配置以进行打印: %v", err)
	}
	log.Printf("配置加载成功！最终生效的配置如下:\n%s\n", string(configBytes))

	// 2. 初始化 Logger
	logger, loggerErr := sharedCore.NewZapLogger(cfg.ZapConfig)
	if loggerErr != nil {
		log.Fatalf("FATAL: 初始化 ZapLogger 失败: %v", loggerErr)
	}
	defer func() {
		logger.Info("正在同步日志...")
		if err := logger.Logger().Sync(); err != nil {
			log.Printf("WARN: ZapLogger Sync 失败: %v\n", err)
		}
	}()
	logger.Info("Logger 初始化成功")

	// 3. 初始化 TracerProvider
	var tracerShutdown func(context.Context) error // 用于优雅关停
	if cfg.TracerConfig.Enabled {
		var err error
		tracerShutdown, err = sharedTracing.InitTracerProvider(
			constant.ServiceName,
			constant.ServiceVersion,
			cfg.TracerConfig,
		)
		if err != nil {
			logger.Fatal("初始化 TracerProvider 失败", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			logger.Info("正在关闭 TracerProvider...")
			if err := tracerShutdown(ctx); err != nil {
				logger.Error("关闭 TracerProvider 失败", zap.Error(err))
			} else {
				logger.Info("TracerProvider 已成功关闭")
			}
		}()
		logger.Info("分布式追踪已初始化")
		// 本服务暂无出站 HTTP 调用，Transport 先行初始化备用
		_ = otelhttp.NewTransport(http.DefaultTransport)
	} else {
		logger.Info("分布式追踪已禁用")
		tracerShutdown = func(ctx context.Context) error { return nil }
	}

	// --- 4. 初始化核心依赖 ---
	// 4.1 数据库 (MySQL)
	db, dbErr := dependencies.InitMySQL(&cfg, logger)
	if dbErr != nil {
		logger.Fatal("初始化 MySQL 数据库失败", zap.Error(dbErr))
	}
	logger.Info("MySQL 数据库连接成功")

	// 4.2 Redis
	rdb, redisErr := dependencies.InitRedis(&cfg.RedisConfig, logger)
	if redisErr != nil {
		logger.Fatal("初始化 Redis 失败", zap.Error(redisErr))
	}
	logger.Info("Redis 连接成功")

	// 4.3 COS 客户端（附件对象存储）
	cos, cosErr := dependencies.InitCOS(&cfg.COSConfig, logger)
	if cosErr != nil {
		logger.Fatal("初始化 COS 客户端失败", zap.Error(cosErr))
	}
	logger.Info("COS 客户端初始化成功")

	// 4.4 Kafka 生产者
	var kafkaProducer *producer.KafkaProducer
	if len(cfg.KafkaConfig.Brokers) > 0 {
		kafkaProducer = producer.NewKafkaProducer(cfg.KafkaConfig, logger)
		logger.Info("Kafka 生产者已初始化")

		// 启动时探测 broker 可用性，重试耗尽视为致命错误
		connectRetries := cfg.KafkaConfig.ConnectMaxRetries
		if connectRetries <= 0 {
			connectRetries = 10
		}
		connectInterval := time.Duration(cfg.KafkaConfig.ConnectRetryIntervalSec) * time.Second
		if connectInterval <= 0 {
			connectInterval = 2 * time.Second
		}
		if err := kafkaProducer.WaitReady(context.Background(), connectRetries, connectInterval); err != nil {
			logger.Fatal("Kafka broker 不可用", zap.Error(err))
		}
	} else {
		logger.Fatal("Kafka brokers 未配置，评论服务的异步副作用依赖消息队列")
	}

	// --- 5. 初始化数据仓库层 (Repositories) ---
	commentRepo := mysql.NewCommentRepository(db, logger)
	logger.Debug("MySQL Repositories 初始化完成")

	commentCache := redisrepo.NewCommentCache(rdb, logger)
	analyticsRepo := redisrepo.NewAnalyticsRepository(rdb, logger)
	logger.Debug("Redis Repositories 初始化完成")

	// --- 6. 初始化实时推送器 ---
	hub := realtime.NewHub(logger)
	wsHandler := realtime.NewWSHandler(hub, logger)

	// --- 7. 初始化服务层 (Services) ---
	// Hub 先于服务注入：评论写入后同步推送给本实例的订阅者
	commentService := service.NewCommentService(commentRepo, commentCache, analyticsRepo, kafkaProducer, hub, logger)
	statsService := service.NewStatsService(analyticsRepo, rdb, logger)
	logger.Debug("Services 初始化完成")

	// 评论创建类端点的限流守卫（可通过配置关闭）
	var rateLimitGuard gin.HandlerFunc
	if cfg.RateLimitConfig.Enabled {
		limit := int64(cfg.RateLimitConfig.Limit)
		limiter := redisrepo.NewSlidingWindowLimiter(
			rdb,
			logger,
			limit,
			time.Duration(cfg.RateLimitConfig.WindowSeconds)*time.Second,
		)
		rateLimitGuard = middleware.RateLimitMiddleware(limiter, logger, limit)
		logger.Info("评论限流已启用",
			zap.Int64("limit", limit),
			zap.Int("windowSeconds", cfg.RateLimitConfig.WindowSeconds))
	} else {
		logger.Warn("评论限流未启用")
	}

	commentController := controller.NewCommentController(commentService, statsService, rateLimitGuard)
	statsController := controller.NewStatsController(statsService)
	logger.Debug("Controllers 初始化完成")

	// --- 8. 初始化 Kafka 消费者 ---
	var consumers []*consumer.Consumer
	var consumerWg sync.WaitGroup

	// 创建一个可以被取消的 context，用于通知所有消费者停止
	consumerCtx, consumerCancel := context.WithCancel(context.Background())

	// 异步 worker 在建立订阅前再次等待 broker 就绪；
	// 重试耗尽则以降级模式启动（HTTP 服务照常工作，只是异步副作用停摆）
	readyRetries := cfg.KafkaConfig.ReadyMaxRetries
	if readyRetries <= 0 {
		readyRetries = 30
	}
	readyInterval := time.Duration(cfg.KafkaConfig.ReadyRetryIntervalSec) * time.Second
	if readyInterval <= 0 {
		readyInterval = time.Second
	}
	workerReady := true
	if err := kafkaProducer.WaitReady(context.Background(), readyRetries, readyInterval); err != nil {
		logger.Error("等待 Kafka 就绪失败，消费者以降级模式跳过启动", zap.Error(err))
		workerReady = false
	}

	if workerReady {
		// 8.1 comment.created 异步 worker（派生附件处理、回复通知、实时广播）
		createdHandler := consumer.NewCommentCreatedHandler(logger, kafkaProducer)
		createdConsumer, err := consumer.NewConsumer(&cfg.KafkaConfig, cfg.KafkaConfig.Topics.CommentCreated, createdHandler, logger)
		if err != nil {
			logger.Fatal("初始化 comment.created 消费者失败", zap.Error(err))
		}
		consumers = append(consumers, createdConsumer)

		// 8.2 file.processing 附件后处理
		fileHandler := consumer.NewFileProcessingHandler(logger, commentRepo, cos, kafkaProducer)
		fileConsumer, err := consumer.NewConsumer(&cfg.KafkaConfig, cfg.KafkaConfig.Topics.FileProcessing, fileHandler, logger)
		if err != nil {
			logger.Fatal("初始化 file.processing 消费者失败", zap.Error(err))
		}
		consumers = append(consumers, fileConsumer)

		// 8.3 email.notification 回复通知
		mailer := consumer.NewLogMailer(logger)
		emailHandler := consumer.NewEmailNotificationHandler(logger, commentRepo, mailer)
		emailConsumer, err := consumer.NewConsumer(&cfg.KafkaConfig, cfg.KafkaConfig.Topics.EmailNotification, emailHandler, logger)
		if err != nil {
			logger.Fatal("初始化 email.notification 消费者失败", zap.Error(err))
		}
		consumers = append(consumers, emailConsumer)

		// 8.4 comment.events 广播消费者（独占消费组，驱动本实例的 Hub）
		broadcastHandler := consumer.NewBroadcastHandler(logger, hub)
		broadcastConsumer, err := consumer.NewBroadcastConsumer(&cfg.KafkaConfig, cfg.KafkaConfig.Topics.CommentEvents, broadcastHandler, logger)
		if err != nil {
			logger.Fatal("初始化广播消费者失败", zap.Error(err))
		}
		consumers = append(consumers, broadcastConsumer)

		logger.Info(fmt.Sprintf("准备启动 %d 个 Kafka 消费者...", len(consumers)))
		for _, c := range consumers {
			consumerWg.Add(1)
			go func(cons *consumer.Consumer) {
				defer consumerWg.Done()
				cons.Start(consumerCtx)
			}(c)
		}
	}

	// --- 9. 初始化定时任务 ---
	popularTask := tasks.NewPopularPostsCacheTask(analyticsRepo, rdb, logger)
	logger.Info("后台定时任务已初始化并启动")

	// --- 10. 设置 Gin 路由器 ---
	ginRouter := router.SetupRouter(logger, &cfg, commentController, statsController, wsHandler)
	logger.Info("Gin 路由器已设置")

	// --- 11. 启动 HTTP 服务器 ---
	serverAddr := fmt.Sprintf(":%s", cfg.ServerConfig.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: ginRouter,
	}

	go func() {
		logger.Info("HTTP 服务器开始监听", zap.String("address", serverAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器启动失败", zap.Error(err))
		}
		logger.Info("HTTP 服务器已停止监听")
	}()

	// --- 12. 实现优雅关停 ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit
	logger.Info("收到关停信号，开始优雅退出...", zap.String("signal", receivedSignal.String()))

	shutdownCtx, shutdownCancelFunc := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancelFunc()

	// a. 停止 HTTP 服务器 (允许处理完当前请求)
	logger.Info("正在关闭 HTTP 服务器...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭 HTTP 服务器失败", zap.Error(err))
	} else {
		logger.Info("HTTP 服务器已成功关闭")
	}

	// b. 关闭 Kafka 消费者
	logger.Info("正在发送停止信号给 Kafka 消费者...")
	consumerCancel()
	logger.Info("等待 Kafka 消费者停止...")
	consumerWg.Wait()

	for _, c := range consumers {
		if err := c.Close(); err != nil {
			logger.Error("关闭某个 Kafka 消费者时出错", zap.Error(err))
		}
	}
	logger.Info("所有 Kafka 消费者已停止。")

	// c. 关闭 Kafka 生产者，刷出未发送的消息
	if err := kafkaProducer.Close(); err != nil {
		logger.Error("关闭 Kafka 生产者失败", zap.Error(err))
	}

	// d. 停止定时任务调度器 (等待任务结束)
	logger.Info("正在停止定时任务...")
	taskStopCtx := popularTask.Stop()
	select {
	case <-taskStopCtx.Done():
		logger.Info("热门帖子快照任务已停止")
	case <-shutdownCtx.Done():
		logger.Error("等待定时任务停止超时", zap.Error(shutdownCtx.Err()))
	}
	logger.Info("所有定时任务已停止")

	logger.Info("服务已成功关闭")
}
