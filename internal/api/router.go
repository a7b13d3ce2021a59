package api

import (
	"time"

	"chef-session/internal/api/handlers/health"
	sessionHandler "chef-session/internal/api/handlers/session"
	"chef-session/internal/api/middleware"
	"chef-session/internal/core/ai/image"
	"chef-session/internal/core/ratelimit"
	"chef-session/internal/core/recipe"
	"chef-session/internal/infrastructure/config"
	"chef-session/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 表單欄位與 multipart 邊界的額外空間
const formOverhead = 1 << 20

// Dependencies 路由需要的服務
type Dependencies struct {
	Sessions *recipe.Service
	Images   *image.Processor
	Health   *health.Handler
	// Limiter 為 nil 時不限流
	Limiter *ratelimit.Limiter
	// Dedup 為 nil 時不去重
	Dedup *middleware.Deduplicator
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New())

	// CORS 設置
	origins := cfg.Server.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           12 * time.Hour,
	}))

	maxBodySize := cfg.Image.MaxSizeBytes + formOverhead
	router.Use(middleware.BodySizeLimit(maxBodySize))
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	// 健康檢查路由
	if deps.Health != nil {
		router.GET("/", deps.Health.Root)
		router.GET("/health", deps.Health.HealthCheck)
		router.GET("/ready", deps.Health.ReadinessCheck)
		router.GET("/live", deps.Health.LivenessCheck)
	}

	// 開始與對話會呼叫 AI 服務，需經過限流與去重
	guarded := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		var chain []gin.HandlerFunc
		if deps.Dedup != nil {
			chain = append(chain, deps.Dedup.Handler())
		}
		return append(chain, middleware.RateLimit(deps.Limiter), handler)
	}

	h := sessionHandler.NewHandler(deps.Sessions, deps.Images, cfg.App.Debug)

	// API 路由組
	api := router.Group("/api")
	{
		sessionGroup := api.Group("/session")
		{
			sessionGroup.POST("", guarded(h.Start)...)
			sessionGroup.GET("/:id", h.Get)
			sessionGroup.GET("/:id/messages", h.Messages)
			sessionGroup.POST("/:id/select", h.Select)
			sessionGroup.POST("/:id/chat", guarded(h.Chat)...)
			sessionGroup.DELETE("/:id", h.End)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("rate_limit_enabled", deps.Limiter != nil),
		zap.Bool("dedup_enabled", deps.Dedup != nil),
		zap.Duration("timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
