// dependencies/mysql.go
package dependencies

import (
	"database/sql"
	"fmt"
	"time"

	"gorm.io/plugin/dbresolver"

	"github.com/Xushengqwer/go-common/core"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	appConfig "github.com/Xushengqwer/comment_service/config"
	"github.com/Xushengqwer/comment_service/models/entities"
)

// InitMySQL 初始化 MySQL 连接，并配置读写分离 (如果配置了从库)。
// 评论表的写入路径全部落主库；扁平列表/分页读取在从库存在时走轮询的读源。
func InitMySQL(cfg *appConfig.CommentConfig, logger *core.ZapLogger) (*gorm.DB, error) {
	mysqlCfg := cfg.MySQLConfig
	gormLogCfg := cfg.GormLogConfig

	if mysqlCfg.Write.DSN == "" {
		return nil, fmt.Errorf("主数据库 DSN (mysql.write.dsn) 未配置")
	}
	gormConfig := &gorm.Config{
		Logger: core.NewGormLogger(logger, gormLogCfg),
	}

	// 带重试的主库连接：数据库容器可能晚于服务就绪
	var db *gorm.DB
	var err error
	maxRetries := 5
	retryInterval := 2 * time.Second

	logger.Info("开始连接主数据库...")
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(mysql.Open(mysqlCfg.Write.DSN), gormConfig)
		if err == nil {
			var sqlDB *sql.DB
			if sqlDB, err = db.DB(); err == nil {
				if err = sqlDB.Ping(); err == nil {
					break
				}
			}
		}
		logger.Warn("无法连接到主数据库，尝试重试",
			zap.Int("retry", i+1),
			zap.Int("maxRetries", maxRetries),
			zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}
	if err != nil {
		logger.Error("无法连接到主数据库", zap.Error(err))
		return nil, fmt.Errorf("无法连接到主数据库: %w", err)
	}
	logger.Info("成功连接到主数据库")

	// --- 配置读写分离 (dbresolver) ---
	readReplicas := make([]gorm.Dialector, 0, len(mysqlCfg.Read))
	for i, replicaCfg := range mysqlCfg.Read {
		if replicaCfg.DSN == "" {
			logger.Warn("发现空的从库 DSN 配置，已跳过", zap.Int("index", i))
			continue
		}
		readReplicas = append(readReplicas, mysql.Open(replicaCfg.DSN))
	}
	if len(readReplicas) > 0 {
		resolverConfig := dbresolver.Config{
			Sources:  []gorm.Dialector{mysql.Open(mysqlCfg.Write.DSN)},
			Replicas: readReplicas,
			Policy:   dbresolver.StrictRoundRobinPolicy(),
		}
		if err = db.Use(dbresolver.Register(resolverConfig)); err != nil {
			logger.Error("配置 GORM 读写分离插件失败", zap.Error(err))
			return nil, fmt.Errorf("配置 GORM 读写分离失败: %w", err)
		}
		logger.Info("成功配置 GORM 读写分离插件", zap.Int("从库数量", len(readReplicas)))
	} else {
		logger.Info("未配置有效的从数据库，不启用读写分离")
	}

	// --- 配置连接池 ---
	sqlDB, dbErr := db.DB()
	if dbErr != nil {
		logger.Error("无法获取数据库对象以配置连接池", zap.Error(dbErr))
		return nil, fmt.Errorf("无法获取数据库对象: %w", dbErr)
	}

	// 以共享设置为基础，主库的独立设置（如有）优先
	maxIdle := mysqlCfg.SharedMaxIdleConns
	maxOpen := mysqlCfg.SharedMaxOpenConns
	maxLife := mysqlCfg.SharedConnMaxLifetime
	if mysqlCfg.Write.MaxIdleConns != nil {
		maxIdle = *mysqlCfg.Write.MaxIdleConns
	}
	if mysqlCfg.Write.MaxOpenConns != nil {
		maxOpen = *mysqlCfg.Write.MaxOpenConns
	}
	if mysqlCfg.Write.ConnMaxLifetime != nil {
		maxLife = *mysqlCfg.Write.ConnMaxLifetime
	}

	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Duration(maxLife) * time.Second)

	logger.Info("配置数据库连接池",
		zap.Int("最大空闲连接数", maxIdle),
		zap.Int("最大打开连接数", maxOpen),
		zap.Int("连接最大生命周期(秒)", maxLife),
	)

	// --- 自动迁移 ---
	// AutoMigrate 默认发送到主库 (Source)；comments 表带 post_id / parent_id /
	// author_user_id 索引，分别支撑按帖子读取、级联删除与用户维度统计。
	logger.Info("开始执行数据库自动迁移...")
	if migrateErr := db.AutoMigrate(&entities.Comment{}); migrateErr != nil {
		logger.Error("数据库自动迁移失败", zap.Error(migrateErr))
		return nil, fmt.Errorf("数据库自动迁移失败: %w", migrateErr)
	}
	logger.Info("数据库自动迁移完成")

	logger.Info("成功初始化 MySQL 连接 (包括读写分离和自动迁移)")
	return db, nil
}
