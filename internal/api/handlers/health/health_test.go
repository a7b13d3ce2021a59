package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chef-session/internal/core/ai/queue"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", h.Root)
	r.GET("/health", h.HealthCheck)
	r.GET("/ready", h.ReadinessCheck)
	r.GET("/live", h.LivenessCheck)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthCheck(t *testing.T) {
	q := queue.NewManager(2, 10)
	defer q.Close()

	r := setup(NewHandler("chef-session", "1.2.3", q))

	w := get(r, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	require.NotNil(t, resp.Queue)
	assert.Equal(t, 2, resp.Queue.Workers)
	assert.Equal(t, 10, resp.Queue.MaxQueueSize)

	w = get(r, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chef-session")

	assert.Equal(t, http.StatusOK, get(r, "/live").Code)
}

func TestReadinessCheck(t *testing.T) {
	h := NewHandler("chef-session", "dev", nil)
	dbUp := true
	h.AddCheck("database", PingFunc(func(ctx context.Context) error {
		if dbUp {
			return nil
		}
		return errors.New("connection refused")
	}))
	r := setup(h)

	w := get(r, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)

	dbUp = false
	w = get(r, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"unavailable"`)
}
