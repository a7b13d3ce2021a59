package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chef-session/internal/api/handlers/health"
	"chef-session/internal/api/middleware"
	"chef-session/internal/core/ai/image"
	"chef-session/internal/core/ai/provider"
	aiservice "chef-session/internal/core/ai/service"
	"chef-session/internal/core/ratelimit"
	"chef-session/internal/core/recipe"
	"chef-session/internal/core/session"
	"chef-session/internal/infrastructure/config"
	"chef-session/internal/infrastructure/database"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoProvider struct{}

func (echoProvider) ChatCompletion(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return &provider.Response{Content: `["eggs"]`}, nil
}

func (echoProvider) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Name: "chef-session", Version: "test", Debug: true},
		Server: config.ServerConfig{RequestTimeout: time.Minute},
		Image:  config.ImageConfig{MaxSizeBytes: 1 << 20, MaxDimension: 512, JPEGQuality: 80},
	}
}

func testDeps(t *testing.T, limiter *ratelimit.Limiter, dedup *middleware.Deduplicator) Dependencies {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(config.DatabaseConfig{Driver: config.DriverSQLite, File: ":memory:"}, false)
	require.NoError(t, err)
	require.NoError(t, session.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	store := session.NewStore(db)
	gateway := aiservice.NewService(echoProvider{}, nil, nil, aiservice.Options{})

	h := health.NewHandler("chef-session", "test", nil)
	h.AddCheck("database", store)

	return Dependencies{
		Sessions: recipe.NewService(gateway, store),
		Images:   image.NewProcessor(1<<20, 512, 80),
		Health:   h,
		Limiter:  limiter,
		Dedup:    dedup,
	}
}

func send(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthRoutes(t *testing.T) {
	r := SetupRouter(testConfig(), testDeps(t, nil, nil))

	for _, path := range []string{"/", "/health", "/ready", "/live"} {
		w := send(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}
}

func TestStartRouteIsRateLimited(t *testing.T) {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), 1, time.Minute)
	r := SetupRouter(testConfig(), testDeps(t, limiter, nil))

	// 回覆不是食譜陣列，第一個請求以上游格式錯誤結束，但仍計入限流
	w := send(r, http.MethodPost, "/api/session", `{"text": "eggs"}`)
	assert.NotEqual(t, http.StatusTooManyRequests, w.Code)

	w = send(r, http.MethodPost, "/api/session", `{"text": "more eggs"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// 讀取路由不受限
	w = send(r, http.MethodGet, "/api/session/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDuplicateStartRejected(t *testing.T) {
	r := SetupRouter(testConfig(), testDeps(t, nil, middleware.NewDeduplicator(time.Minute)))

	first := send(r, http.MethodPost, "/api/session", `{"text": "eggs"}`)
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := send(r, http.MethodPost, "/api/session", `{"text": "eggs"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestBodyTooLarge(t *testing.T) {
	cfg := testConfig()
	r := SetupRouter(cfg, testDeps(t, nil, nil))

	big := `{"text": "` + strings.Repeat("a", int(cfg.Image.MaxSizeBytes+formOverhead)) + `"}`
	w := send(r, http.MethodPost, "/api/session", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
