package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"chef-session/internal/core/ai/queue"
	"chef-session/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const checkTimeout = 2 * time.Second

// Pinger 可檢查連線的依賴，例如資料庫或 Redis
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 將函式轉為 Pinger
type PingFunc func(ctx context.Context) error

// Ping 實作 Pinger
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
}

// Handler 健康檢查處理器
type Handler struct {
	name    string
	version string
	queue   *queue.Manager
	checks  map[string]Pinger
}

// NewHandler 創建健康檢查處理器；queue 可為 nil
func NewHandler(name, version string, q *queue.Manager) *Handler {
	return &Handler{
		name:    name,
		version: version,
		queue:   q,
		checks:  make(map[string]Pinger),
	}
}

// AddCheck 加入就緒檢查項目
func (h *Handler) AddCheck(name string, p Pinger) {
	if p != nil {
		h.checks[name] = p
	}
}

// Root 服務資訊
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    h.name,
		"version": h.version,
		"status":  "running",
	})
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.queue != nil {
		response.Queue = h.queue.GetQueueStatus()
	}

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查處理器，任一依賴無法連線時回傳 503
func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	ready := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			common.LogWarn("Readiness check failed",
				zap.String("check", name),
				zap.Error(err),
			)
			results[name] = "unavailable"
			ready = false
			continue
		}
		results[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"checks": results,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": results,
	})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
