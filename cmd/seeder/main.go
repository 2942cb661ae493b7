package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Xushengqwer/go-common/core"
	"go.uber.org/zap"

	appConfig "github.com/Xushengqwer/comment_service/config"
	"github.com/Xushengqwer/comment_service/dependencies"
	"github.com/Xushengqwer/comment_service/mq/producer"
	"github.com/Xushengqwer/comment_service/realtime"
	"github.com/Xushengqwer/comment_service/repo/mysql"
	redisRepo "github.com/Xushengqwer/comment_service/repo/redis"
	commentServicePkg "github.com/Xushengqwer/comment_service/service"
)

func main() {
	// --- 0. 解析命令行参数 ---
	var numPosts int
	var commentsPerPost int
	var configFile string
	flag.StringVar(&configFile, "config", "config/config.development.yaml", "配置文件路径")
	flag.IntVar(&numPosts, "posts", 10, "要生成评论的帖子数量 (默认: 10)")
	flag.IntVar(&commentsPerPost, "n", 20, "每个帖子生成的评论数量，含回复 (默认: 20)")
	var waitSeconds int
	flag.IntVar(&waitSeconds, "wait", 5, "数据填充后等待的秒数 (确保异步任务完成, 默认: 5秒)")
	flag.Parse()

	absConfigFile, err := filepath.Abs(configFile)
	if err != nil {
		fmt.Printf("无法获取配置文件的绝对路径 '%s': %v\n", configFile, err)
		absConfigFile = configFile
	}
	fmt.Printf("准备使用配置文件 '%s' 为 %d 个帖子各生成 %d 条测试评论...\n", absConfigFile, numPosts, commentsPerPost)

	if numPosts <= 0 || commentsPerPost <= 0 {
		fmt.Println("错误: 帖子数量与每帖评论数量都必须大于 0")
		os.Exit(1)
	}
	if waitSeconds < 0 {
		fmt.Println("错误: 等待秒数不能为负")
		os.Exit(1)
	}

	// --- 1. 加载配置 ---
	var cfg appConfig.CommentConfig
	if err := core.LoadConfig(absConfigFile, &cfg); err != nil {
		fmt.Printf("加载配置失败 (%s): %v\n", absConfigFile, err)
		os.Exit(1)
	}
	fmt.Println("配置加载成功。")

	// --- 2. 初始化日志记录器 ---
	logger, loggerErr := core.NewZapLogger(cfg.ZapConfig)
	if loggerErr != nil {
		fmt.Printf("初始化 ZapLogger 失败: %v\n", loggerErr)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Logger().Sync()
	}()
	logger.Info("Logger 初始化成功 (Seeder)")

	// --- 3. 初始化 MySQL 数据库连接 ---
	db, dbErr := dependencies.InitMySQL(&cfg, logger)
	if dbErr != nil {
		logger.Fatal("初始化 MySQL 失败 (Seeder)", zap.Error(dbErr))
	}
	logger.Info("MySQL 连接成功 (Seeder)")

	// --- 4. 初始化 Redis ---
	rdb, redisErr := dependencies.InitRedis(&cfg.RedisConfig, logger)
	if redisErr != nil {
		logger.Fatal("初始化 Redis 失败 (Seeder)", zap.Error(redisErr))
	}
	logger.Info("Redis 连接成功 (Seeder)")

	// --- 5. 初始化 Kafka 生产者 ---
	kafkaProducer := producer.NewKafkaProducer(cfg.KafkaConfig, logger)
	logger.Info("Kafka 生产者已初始化 (Seeder)")

	// --- 6. 初始化 Repositories ---
	commentRepo := mysql.NewCommentRepository(db, logger)
	commentCache := redisRepo.NewCommentCache(rdb, logger)
	analyticsRepo := redisRepo.NewAnalyticsRepository(rdb, logger)

	// --- 7. 初始化 Service ---
	// Seeder 进程没有 WebSocket 连接，Hub 的同步推送落到空房间上
	hub := realtime.NewHub(logger)
	commentSvc := commentServicePkg.NewCommentService(
		commentRepo,
		commentCache,
		analyticsRepo,
		kafkaProducer,
		hub,
		logger,
	)
	logger.Info("CommentService 已初始化 (Seeder)")

	// --- 8. 执行数据填充 ---
	ctx := context.Background()
	startTime := time.Now()
	logger.Info("开始执行数据填充...",
		zap.Int("posts", numPosts),
		zap.Int("commentsPerPost", commentsPerPost))

	Seed(ctx, commentSvc, logger, numPosts, commentsPerPost)

	duration := time.Since(startTime)
	logger.Info("数据填充主要逻辑完成！", zap.Duration("耗时", duration))

	// --- 9. 等待一段时间以确保异步 Kafka 任务有时间发送 ---
	if waitSeconds > 0 {
		logger.Info(fmt.Sprintf("Seeder: 数据填充请求已发送，等待 %d 秒以允许异步 Kafka 消息发送...", waitSeconds))
		time.Sleep(time.Duration(waitSeconds) * time.Second)
	}

	fmt.Printf("数据填充完成！总耗时（包括等待）: %v\n", time.Since(startTime))
	logger.Info("Seeder main: 所有任务完成（包括等待期），准备退出。")
}
