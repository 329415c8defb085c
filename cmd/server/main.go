package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"momentummail/backend/internal/config"
	"momentummail/backend/internal/draft"
	"momentummail/backend/internal/health"
	"momentummail/backend/internal/logger"
	"momentummail/backend/internal/monitoring"
	"momentummail/backend/internal/notify"
	"momentummail/backend/internal/pool"
	"momentummail/backend/internal/storage"
	"momentummail/backend/internal/storage/filesystem"
	"momentummail/backend/internal/storage/memory"
	redisstore "momentummail/backend/internal/storage/redis"
	sqlstore "momentummail/backend/internal/storage/sql"
	"momentummail/backend/internal/tracker"
	httptransport "momentummail/backend/internal/transport/http"
	"momentummail/backend/internal/websocket"
)

// main 启动 HTTP API 与跟进清扫调度。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting momentummail server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("storage", cfg.Storage.Type),
		zap.String("owner", cfg.Tracker.Owner),
	)

	// 初始化存储层
	repo, err := initializeStorage(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Warn("storage close warning", zap.Error(err))
		}
	}()

	// 初始化监控系统
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)
	healthChecker := health.NewHealthChecker(repo, log.Named("health"))

	// 草稿生成服务
	var generator draft.Generator = draft.Unconfigured{}
	if cfg.AI.Enabled() {
		generator = draft.NewOpenAIGenerator(draft.Config{
			BaseURL:       cfg.AI.BaseURL,
			APIKey:        cfg.AI.APIKey,
			Model:         cfg.AI.Model,
			MaxTokens:     cfg.AI.MaxTokens,
			Temperature:   float32(cfg.AI.Temperature),
			RatePerMinute: cfg.AI.RatePerMinute,
		}, log.Named("draft"))
		log.Info("draft generation enabled", zap.String("model", cfg.AI.Model))
	} else {
		log.Warn("draft generation not configured, follow-ups will use the placeholder text")
	}

	// 事件订阅者
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, log.Named("websocket"))
	publishers := tracker.Publishers{wsHub}

	var workers *pool.WorkerPool
	if cfg.Notify.Enabled() {
		workers = pool.NewWorkerPool(cfg.Notify.Workers, 100, log.Named("pool"))
		sender := notify.NewSMTPSender(notify.SMTPConfig{
			Host:               cfg.Notify.SMTPHost,
			Port:               cfg.Notify.SMTPPort,
			Username:           cfg.Notify.Username,
			Password:           cfg.Notify.Password,
			From:               cfg.Notify.From,
			InsecureSkipVerify: cfg.Notify.InsecureSkipVerify,
			RetryCount:         3,
			RetryBackoff:       2 * time.Second,
		}, log.Named("notify"))
		publishers = append(publishers, notify.NewNotifier(sender, workers, cfg.Notify.To, metrics, log.Named("notify")))
		log.Info("follow-up notifications enabled", zap.Strings("to", cfg.Notify.To))
	}

	trackerCfg := tracker.Config{
		SweepInterval:    cfg.Tracker.SweepInterval,
		FirstSweepDelay:  cfg.Tracker.FirstSweepDelay,
		DraftTimeout:     cfg.Tracker.DraftTimeout,
		DraftConcurrency: cfg.Tracker.DraftConcurrency,
	}
	trackers := tracker.NewRegistry(repo, func(owner string) *tracker.Tracker {
		return tracker.New(owner, repo, generator, trackerCfg,
			tracker.WithLogger(log.Named("tracker")),
			tracker.WithMetrics(metrics),
			tracker.WithPublisher(publishers),
		)
	}, log.Named("tracker"))

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:       cfg,
		Registry:     trackers,
		Health:       healthChecker,
		Metrics:      metrics,
		WebSocketHub: wsHub,
		Logger:       log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 关闭时由 Stop 发送完已入队的提醒
	if workers != nil {
		workers.Start(context.WithoutCancel(groupCtx))
	}

	// 恢复已持久化的所有者并启动清扫调度
	group.Go(func() error {
		if err := trackers.Start(groupCtx); err != nil {
			log.Error("failed to start tracker scheduling", zap.Error(err))
			return err
		}
		// 单一所有者模式下立即加载，保证首次清扫被调度
		if _, err := trackers.Get(groupCtx, cfg.Tracker.Owner); err != nil {
			log.Warn("failed to load tracker state", zap.String("owner", cfg.Tracker.Owner), zap.Error(err))
		}
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		trackers.Wait()
		if workers != nil {
			workers.Stop()
		}

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", zap.Error(err))
		return
	}

	log.Info("server exited cleanly")
}

// initializeStorage 按配置选择状态持久化后端
func initializeStorage(cfg *config.Config, log *zap.Logger) (storage.StateRepository, error) {
	switch cfg.Storage.Type {
	case config.StorageFile:
		store, err := filesystem.NewStore(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("create filesystem store: %w", err)
		}
		log.Info("using filesystem storage", zap.String("path", cfg.Storage.Path))
		return store, nil

	case config.StorageDatabase:
		store, err := sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			return nil, fmt.Errorf("create database store: %w", err)
		}
		log.Info("using database storage", zap.String("driver", store.DriverName()))
		return store, nil

	case config.StorageRedis:
		client, err := redisstore.New(redisstore.Options{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info("using redis storage", zap.String("address", cfg.Redis.Address))
		return redisstore.NewStore(client, cfg.Redis.KeyPrefix), nil

	default:
		log.Info("using memory storage (state is lost on restart)")
		return memory.NewStore(), nil
	}
}
