package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	AI          AIConfig         `mapstructure:"ai"`
	Cache       CacheConfig      `mapstructure:"cache"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Image       ImageConfig      `mapstructure:"image"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
	LogFile     string           `mapstructure:"log_file"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	VisionModel string        `mapstructure:"vision_model"`
	ChatModel   string        `mapstructure:"chat_model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Referer     string        `mapstructure:"referer"`
	Title       string        `mapstructure:"title"`
}

// AIConfig AI 配置
type AIConfig struct {
	Workers      int `mapstructure:"workers"`
	MaxQueueSize int `mapstructure:"max_queue_size"`
}

// CacheConfig 食譜快取配置，max_size 與 ttl 為 0 表示不淘汰
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"`
	Requests        int           `mapstructure:"requests"`
	Window          time.Duration `mapstructure:"window"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// ImageConfig 圖片配置
type ImageConfig struct {
	MaxSizeBytes int64 `mapstructure:"max_size_bytes"`
	MaxDimension int   `mapstructure:"max_dimension"`
	JPEGQuality  int   `mapstructure:"jpeg_quality"`
}

// DatabaseConfig 資料庫配置
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	File   string `mapstructure:"file"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件，不存在時只使用環境變數
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// 設定預設值
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	bindings := map[string]string{
		"openrouter.api_key":      "OPENROUTER_API_KEY",
		"openrouter.base_url":     "OPENROUTER_BASE_URL",
		"openrouter.model":        "OPENROUTER_MODEL",
		"openrouter.vision_model": "OPENROUTER_VISION_MODEL",
		"openrouter.chat_model":   "OPENROUTER_CHAT_MODEL",
		"openrouter.max_tokens":   "MODEL_MAX_TOKENS",
		"database.driver":         "DATABASE_DRIVER",
		"database.dsn":            "DATABASE_DSN",
		"database.file":           "DATABASE_FILE",
		"redis.addr":              "REDIS_ADDR",
		"redis.password":          "REDIS_PASSWORD",
		"cache.enabled":           "CACHE_ENABLED",
		"cache.backend":           "CACHE_BACKEND",
		"rate_limit.enabled":      "RATE_LIMIT_ENABLED",
		"rate_limit.backend":      "RATE_LIMIT_BACKEND",
		"rate_limit.requests":     "RATE_LIMIT_REQUESTS",
		"rate_limit.window":       "RATE_LIMIT_WINDOW",
		"dedup_window":            "DEDUP_WINDOW",
		"log_level":               "LOG_LEVEL",
		"log_file":                "LOG_FILE",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	// 設定設定檔名稱和路徑
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	// 讀取設定檔
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 解析設定
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// ModelFor 依用途取得模型，未設定時回退到預設模型
func (c OpenRouterConfig) ModelFor(specific string) string {
	if specific != "" {
		return specific
	}
	return c.Model
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "chef-session")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "150s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.allow_origins", []string{"*"})

	// OpenRouter 設定
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "opengvlab/internvl3-14b:free")
	v.SetDefault("openrouter.vision_model", "")
	v.SetDefault("openrouter.chat_model", "mistralai/mistral-7b-instruct")
	v.SetDefault("openrouter.max_tokens", 2048)
	v.SetDefault("openrouter.temperature", 0.7)
	v.SetDefault("openrouter.timeout", "60s")
	v.SetDefault("openrouter.referer", "https://chef-session.local")
	v.SetDefault("openrouter.title", "Chef Session")

	// AI 設定
	v.SetDefault("ai.workers", 5)
	v.SetDefault("ai.max_queue_size", 100)

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.max_size", 0)
	v.SetDefault("cache.ttl", "0s")
	v.SetDefault("cache.cleanup_interval", "10m")

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", BackendMemory)
	v.SetDefault("rate_limit.requests", 5)
	v.SetDefault("rate_limit.window", "60s")
	v.SetDefault("rate_limit.cleanup_interval", "5m")

	// 圖片設定
	v.SetDefault("image.max_size_bytes", 10*1024*1024) // 10MB
	v.SetDefault("image.max_dimension", 1024)
	v.SetDefault("image.jpeg_quality", 85)

	// 資料庫設定
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.file", "recipe_ai.db")

	// Redis 設定
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "logs/app.log")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	if config.OpenRouter.BaseURL == "" {
		return fmt.Errorf("openrouter base url is required")
	}
	if config.OpenRouter.Timeout <= 0 {
		return fmt.Errorf("invalid openrouter timeout")
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		if config.Cache.MaxSize < 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL < 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if err := validateBackend("cache", config.Cache.Backend); err != nil {
			return err
		}
	}

	// 驗證限流設定
	if config.RateLimit.Enabled {
		if config.RateLimit.Requests <= 0 {
			return fmt.Errorf("invalid rate limit requests")
		}
		if config.RateLimit.Window <= 0 {
			return fmt.Errorf("invalid rate limit window")
		}
		if err := validateBackend("rate limit", config.RateLimit.Backend); err != nil {
			return err
		}
	}

	// 驗證隊列設定
	if config.AI.Workers <= 0 {
		return fmt.Errorf("invalid ai workers")
	}
	if config.AI.MaxQueueSize <= 0 {
		return fmt.Errorf("invalid ai max queue size")
	}

	switch config.Database.Driver {
	case DriverSQLite:
		if config.Database.DSN == "" && config.Database.File == "" {
			return fmt.Errorf("database file is required for sqlite")
		}
	case DriverPostgres:
		if config.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", config.Database.Driver)
	}

	return nil
}

func validateBackend(name, backend string) error {
	if backend != BackendMemory && backend != BackendRedis {
		return fmt.Errorf("unsupported %s backend: %s", name, backend)
	}
	return nil
}
