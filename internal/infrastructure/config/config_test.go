package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sk-or-test-key", cfg.OpenRouter.APIKey)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouter.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.OpenRouter.Timeout)
	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, BackendMemory, cfg.RateLimit.Backend)
	assert.Equal(t, 0, cfg.Cache.MaxSize)
	assert.Equal(t, time.Duration(0), cfg.Cache.TTL)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "recipe_ai.db", cfg.Database.File)
	assert.Equal(t, 120*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 1024, cfg.Image.MaxDimension)
	assert.Equal(t, 85, cfg.Image.JPEGQuality)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("OPENROUTER_BASE_URL", "http://localhost:9999/v1")
	t.Setenv("DATABASE_FILE", "/tmp/chef.db")
	t.Setenv("RATE_LIMIT_REQUESTS", "10")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("APP_SERVER_PORT", "9090")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999/v1", cfg.OpenRouter.BaseURL)
	assert.Equal(t, "/tmp/chef.db", cfg.Database.File)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad rate limit", "RATE_LIMIT_REQUESTS", "0"},
		{"bad backend", "RATE_LIMIT_BACKEND", "memcached"},
		{"unknown driver", "DATABASE_DRIVER", "oracle"},
		{"postgres without dsn", "DATABASE_DRIVER", "postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "sk-o...5678", MaskAPIKey("sk-or-v1-12345678"))
	assert.Equal(t, "****", MaskAPIKey("short"))
}

func TestModelFor(t *testing.T) {
	cfg := OpenRouterConfig{Model: "default/model"}
	assert.Equal(t, "default/model", cfg.ModelFor(""))
	assert.Equal(t, "chat/model", cfg.ModelFor("chat/model"))
}
