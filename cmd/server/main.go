package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vasuki20/suss-student-discussion-data/config"
	"github.com/vasuki20/suss-student-discussion-data/internal/api/handler"
	"github.com/vasuki20/suss-student-discussion-data/internal/api/middleware"
	"github.com/vasuki20/suss-student-discussion-data/internal/api/router"
	"github.com/vasuki20/suss-student-discussion-data/internal/ingest"
	"github.com/vasuki20/suss-student-discussion-data/internal/repository"
	"github.com/vasuki20/suss-student-discussion-data/internal/service"
	"github.com/vasuki20/suss-student-discussion-data/pkg/database"
	applogger "github.com/vasuki20/suss-student-discussion-data/pkg/logger"
	"github.com/vasuki20/suss-student-discussion-data/pkg/redis"
)

func main() {
	// 0. 本地开发时从 .env 读取环境变量，文件不存在时忽略
	_ = godotenv.Load()

	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("FORUM_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("ingest_source", cfg.Ingest.Source),
	)

	// 3. 连接数据库并建表
	db, err := database.NewDB(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	if err := database.AutoMigrate(db, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：未配置或连接失败时不缓存、不限流）
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，查询缓存与限流将不可用", zap.Error(err))
			rdb = nil
		}
	}
	// 接口变量只在客户端可用时赋值，避免 nil 指针被包装成非 nil 接口
	var (
		queryCache service.QueryCache
		limiter    middleware.RateLimiter
		bumper     ingest.VersionBumper
	)
	if rdb != nil {
		queryCache, limiter, bumper = rdb, rdb, rdb
	}

	// 5. 组装导入流水线
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var s3Client ingest.S3API
	if cfg.Ingest.Source == "s3" {
		client, err := ingest.NewS3Client(ctx, cfg.Ingest.S3)
		if err != nil {
			logger.Fatal("创建 S3 客户端失败", zap.Error(err))
		}
		s3Client = client
	}
	plan, err := ingest.PlanFromConfig(cfg.Ingest, s3Client)
	if err != nil {
		logger.Fatal("生成导入计划失败", zap.Error(err))
	}

	repo := repository.NewRepository(db)
	opts := ingest.Options{
		Recorder:    repo.IngestRun,
		Cache:       bumper,
		Concurrency: cfg.Ingest.Concurrency,
	}
	var notifier *ingest.KafkaNotifier
	if len(cfg.Ingest.Kafka.Brokers) > 0 {
		notifier = ingest.NewKafkaNotifier(cfg.Ingest.Kafka.Brokers, cfg.Ingest.Kafka.Topic)
		opts.Notifier = notifier
	}
	pipeline := ingest.NewPipeline(ingest.NewLoader(repo.Replace, logger), plan, opts, logger)

	// 6. 依赖注入: Repository → Service → Handler
	svc := service.NewService(cfg, repo, pipeline, queryCache, logger)
	h := handler.NewHandler(svc)
	engine := router.Setup(cfg, h, db, limiter, logger)

	// 7. 导入触发器：启动时、定时、队列
	var wg sync.WaitGroup
	if cfg.Ingest.RunOnStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := pipeline.Run(ctx, ingest.TriggerStartup); err != nil {
				logger.Error("启动导入失败", zap.Error(err))
			}
		}()
	}

	var scheduler *ingest.Scheduler
	if cfg.Ingest.Schedule != "" {
		scheduler, err = ingest.NewScheduler(pipeline, cfg.Ingest.Schedule, cfg.Ingest.Timezone, logger)
		if err != nil {
			logger.Fatal("创建定时导入失败", zap.Error(err))
		}
		scheduler.Start()
	}

	if cfg.Ingest.SQS.QueueURL != "" {
		sqsClient, err := ingest.NewSQSClient(ctx, cfg.Ingest.S3.Region)
		if err != nil {
			logger.Fatal("创建 SQS 客户端失败", zap.Error(err))
		}
		listener := ingest.NewQueueListener(sqsClient, cfg.Ingest.SQS, pipeline, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			listener.Listen(ctx)
		}()
	}

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // 手动导入同步返回报告
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	<-ctx.Done()
	logger.Info("收到关闭信号，开始优雅关闭...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	wg.Wait()

	if notifier != nil {
		notifier.Close()
	}
	if sqlDB, _ := db.DB(); sqlDB != nil {
		sqlDB.Close()
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
