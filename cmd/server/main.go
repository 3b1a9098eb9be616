package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailalias/backend/internal/config"
	"mailalias/backend/internal/generator"
	"mailalias/backend/internal/health"
	"mailalias/backend/internal/logger"
	"mailalias/backend/internal/monitoring"
	"mailalias/backend/internal/service"
	"mailalias/backend/internal/storage"
	"mailalias/backend/internal/storage/memory"
	redisstore "mailalias/backend/internal/storage/redis"
	sqlstore "mailalias/backend/internal/storage/sql"
	httptransport "mailalias/backend/internal/transport/http"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 设置 Gin 运行模式
	if cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化日志
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting alias service",
		zap.String("domain", cfg.Alias.Domain),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	// 初始化存储层
	store, err := newStore(cfg)
	if err != nil {
		log.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	// 初始化 Redis 缓存（可选）
	var aliasCache storage.AliasCache
	var redisCache *redisstore.Cache
	if cfg.Redis.Address != "" {
		redisCache, err = redisstore.NewCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			// 缓存不可用时降级为直查存储
			log.Warn("Redis unavailable, resolve cache disabled", zap.Error(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			aliasCache = redisCache
			log.Info("Redis resolve cache enabled", zap.String("address", cfg.Redis.Address))
		}
	}

	// 初始化监控指标
	metrics := monitoring.NewMetrics()

	// 初始化健康检查
	healthChecker := health.NewHealthChecker(store, redisCache, log)

	// 初始化别名生成器与业务服务
	aliasGenerator := generator.NewAliasGenerator(nil)
	aliasService := service.NewAliasService(store, aliasCache, aliasGenerator, cfg, log)

	// 初始化 HTTP 路由
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:       cfg,
		AliasService: aliasService,
		Metrics:      metrics,
		Logger:       log,
	})

	apiServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 运维端点：指标与健康检查独立于业务端口
	opsMux := http.NewServeMux()
	opsMux.Handle("/metrics", metrics.HTTPHandler())
	opsMux.Handle("/live", healthChecker.Handler())
	opsMux.Handle("/ready", healthChecker.Handler())
	opsServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Ops.Port),
		Handler:     opsMux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("API server listening", zap.String("addr", apiServer.Addr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		log.Info("Ops server listening", zap.String("addr", opsServer.Addr))
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	// 等待退出信号后优雅关闭
	group.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Error("API server shutdown error", zap.Error(err))
		}
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Ops server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Fatal("Server exited with error", zap.Error(err))
	}

	log.Info("Server stopped")
}

// newStore 根据配置选择存储后端。database.type 为空时使用内存存储，
// 适合本地开发与测试。
func newStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Database.Type == "" {
		return memory.NewStore(), nil
	}

	return sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
}
