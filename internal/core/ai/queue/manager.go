package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"chef-session/internal/pkg/common"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull 等待中的請求已達上限
	ErrQueueFull = errors.New("queue is full")
	// ErrClosed 隊列已關閉
	ErrClosed = errors.New("queue manager is closed")
)

// Job 在 worker 上執行的工作
type Job func(ctx context.Context) error

// request 隊列請求
type request struct {
	ctx    context.Context
	job    Job
	result chan error
}

// Status 隊列狀態
type Status struct {
	QueueLength    int   `json:"queue_length"`
	ProcessedCount int64 `json:"processed_count"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Workers        int   `json:"workers"`
}

// Manager 隊列管理器，限制同時進行的上游呼叫數量
type Manager struct {
	workers      int
	maxQueueSize int
	queue        chan *request
	done         chan struct{}
	processed    int64
	wg           sync.WaitGroup
	closeOnce    sync.Once
}

// NewManager 創建新的隊列管理器並啟動 worker
func NewManager(workers, maxQueueSize int) *Manager {
	if workers <= 0 {
		workers = 1
	}
	if maxQueueSize <= 0 {
		maxQueueSize = workers
	}

	m := &Manager{
		workers:      workers,
		maxQueueSize: maxQueueSize,
		queue:        make(chan *request, maxQueueSize),
		done:         make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	common.LogInfo("隊列管理器已啟動",
		zap.Int("workers", workers),
		zap.Int("max_queue_size", maxQueueSize),
	)
	return m
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case req := <-m.queue:
			// 呼叫端已放棄就不再執行
			if err := req.ctx.Err(); err != nil {
				req.result <- err
				continue
			}
			req.result <- req.job(req.ctx)
			atomic.AddInt64(&m.processed, 1)
			common.LogDebug("Request processed", zap.Int("worker", id))
		}
	}
}

// Do 將工作加入隊列並等待結果；隊列已滿時立即返回 ErrQueueFull
func (m *Manager) Do(ctx context.Context, job Job) error {
	req := &request{
		ctx:    ctx,
		job:    job,
		result: make(chan error, 1),
	}

	select {
	case <-m.done:
		return ErrClosed
	default:
	}

	select {
	case m.queue <- req:
	case <-ctx.Done():
		return ctx.Err()
	default:
		common.LogWarn("Request rejected, queue is full",
			zap.Int("queue_length", len(m.queue)),
			zap.Int("max_queue_size", m.maxQueueSize),
		)
		return ErrQueueFull
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrClosed
	}
}

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		QueueLength:    len(m.queue),
		ProcessedCount: atomic.LoadInt64(&m.processed),
		MaxQueueSize:   m.maxQueueSize,
		Workers:        m.workers,
	}
}

// Close 關閉隊列管理器並等待 worker 結束
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}
