package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chef-session/internal/api"
	"chef-session/internal/api/handlers/health"
	"chef-session/internal/api/middleware"
	"chef-session/internal/core/ai/cache"
	"chef-session/internal/core/ai/image"
	"chef-session/internal/core/ai/openrouter"
	"chef-session/internal/core/ai/queue"
	aiservice "chef-session/internal/core/ai/service"
	"chef-session/internal/core/ratelimit"
	"chef-session/internal/core/recipe"
	"chef-session/internal/core/session"
	"chef-session/internal/infrastructure/config"
	"chef-session/internal/infrastructure/database"
	"chef-session/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("openrouter_api_key", config.MaskAPIKey(cfg.OpenRouter.APIKey)),
		zap.String("openrouter_model", cfg.OpenRouter.Model),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("rate_limit_backend", cfg.RateLimit.Backend),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 資料庫
	db, err := database.Open(cfg.Database, cfg.App.Debug)
	if err != nil {
		common.LogFatal("Failed to open database", zap.Error(err))
	}
	defer database.Close(db)

	if err := session.Migrate(db); err != nil {
		common.LogFatal("Failed to migrate database", zap.Error(err))
	}
	store := session.NewStore(db)

	// Redis 只在快取或限流使用 redis 時連線
	var redisClient *redis.Client
	if needsRedis(cfg) {
		redisClient, err = database.NewRedisClient(cfg.Redis)
		if err != nil {
			common.LogFatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	// 初始化快取
	var recipeCache cache.RecipeCache
	if cfg.Cache.Enabled {
		if cfg.Cache.Backend == config.BackendRedis {
			recipeCache = cache.NewRedisCache(redisClient, cfg.Cache.TTL)
		} else {
			recipeCache = cache.NewManager(cfg.Cache)
		}
		defer recipeCache.Close()
	}

	// 上游呼叫隊列
	queueManager := queue.NewManager(cfg.AI.Workers, cfg.AI.MaxQueueSize)
	defer queueManager.Close()

	client := openrouter.NewClient(cfg.OpenRouter)
	defer client.Close()

	gateway := aiservice.NewService(client, recipeCache, queueManager, aiservice.Options{
		ExtractModel:  cfg.OpenRouter.ModelFor(cfg.OpenRouter.VisionModel),
		GenerateModel: cfg.OpenRouter.Model,
		ChatModel:     cfg.OpenRouter.ModelFor(cfg.OpenRouter.ChatModel),
		MaxTokens:     cfg.OpenRouter.MaxTokens,
		Temperature:   cfg.OpenRouter.Temperature,
		Timeout:       cfg.OpenRouter.Timeout,
	})

	sessions := recipe.NewService(gateway, store)
	images := image.NewProcessor(cfg.Image.MaxSizeBytes, cfg.Image.MaxDimension, cfg.Image.JPEGQuality)

	// 限流
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		var limitStore ratelimit.Store
		if cfg.RateLimit.Backend == config.BackendRedis {
			limitStore = ratelimit.NewRedisStore(redisClient)
		} else {
			limitStore = ratelimit.NewMemoryStore()
		}
		limiter = ratelimit.New(limitStore, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		go limiter.Run(ctx, cfg.RateLimit.CleanupInterval)
	}

	dedup := middleware.NewDeduplicator(cfg.DedupWindow)
	go dedup.Run(ctx, 10*time.Minute)

	healthHandler := health.NewHandler(cfg.App.Name, cfg.App.Version, queueManager)
	healthHandler.AddCheck("database", store)
	if redisClient != nil {
		healthHandler.AddCheck("redis", health.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}

	// 設置路由
	router := api.SetupRouter(cfg, api.Dependencies{
		Sessions: sessions,
		Images:   images,
		Health:   healthHandler,
		Limiter:  limiter,
		Dedup:    dedup,
	})

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		common.LogInfo("Shutting down server...")
	case err := <-serverErr:
		common.LogError("Failed to start server", zap.Error(err))
	}

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	common.LogInfo("Server exited")
}

func needsRedis(cfg *config.Config) bool {
	return (cfg.Cache.Enabled && cfg.Cache.Backend == config.BackendRedis) ||
		(cfg.RateLimit.Enabled && cfg.RateLimit.Backend == config.BackendRedis)
}
