package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/smart-shortener/internal/config"
	"github.com/SergeiKhy/smart-shortener/internal/handler"
	"github.com/SergeiKhy/smart-shortener/internal/idgen"
	"github.com/SergeiKhy/smart-shortener/internal/repository"
	"github.com/SergeiKhy/smart-shortener/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, err := newLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.App.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Хранилище ссылок и кликов
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer store.close()

	// Кэш: Redis, если настроен, иначе в памяти процесса
	var cacheRepo repository.CacheRepository
	if cfg.Redis.Enabled() {
		redis, err := repository.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redis.Close()
		cacheRepo = repository.NewCacheRepository(redis)
		logger.Info("Connected to Redis")
	} else {
		cacheRepo = repository.NewMemoryCacheRepository(cfg.Redis.CacheTTL)
		logger.Info("Redis not configured, using in-memory cache")
	}

	// Инициализация сервисов
	linkService := service.NewLinkService(
		store.links,
		store.clicks,
		cacheRepo,
		idgen.NewRandomGenerator(),
		service.Options{
			CodeLength:            cfg.Shortener.CodeLength,
			MaxAllocationAttempts: cfg.Shortener.MaxAllocationAttempts,
			CacheTTL:              cfg.Redis.CacheTTL,
		},
		logger,
	)
	clickRecorder := service.NewClickRecorder(store.clicks, logger)
	resolver := service.NewResolver(linkService, clickRecorder, cacheRepo, logger)

	if cfg.App.AdminAPIKey != "" {
		logger.Info("Admin API enabled")
	}

	// Настройка роутера
	router, err := handler.NewRouter(linkService, resolver, handler.RouterConfig{
		BaseURL:        cfg.App.BaseURL,
		TrustedProxies: cfg.App.TrustedProxies,
		AdminAPIKey:    cfg.App.AdminAPIKey,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to set up router", zap.Error(err))
	}

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = atomicLevel
	return zapCfg.Build()
}
