// Package ratelimit 以滑動時間窗限制每個客戶端的請求數。
package ratelimit

import (
	"context"
	"time"

	"chef-session/internal/pkg/common"

	"go.uber.org/zap"
)

// Decision 限流結果
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Store 保存每個鍵在時間窗內已接受的請求時間
type Store interface {
	// Get 讀取目前紀錄，不做修改
	Get(ctx context.Context, key string) ([]time.Time, error)
	// Update 對單一鍵做原子的讀取-修改-寫入；fn 可能被重試
	Update(ctx context.Context, key string, ttl time.Duration, fn func([]time.Time) []time.Time) error
	// Purge 清除某個鍵的紀錄
	Purge(ctx context.Context, key string) error
}

// Sweeper 可定期清理過期紀錄的 Store
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// Limiter 滑動時間窗限流器
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

// New 創建限流器：window 內最多 limit 次
func New(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Limit 每個時間窗的上限
func (l *Limiter) Limit() int {
	return l.limit
}

// Window 時間窗長度
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Admit 檢查並記錄一次請求；拒絕時不寫入新的時間戳
func (l *Limiter) Admit(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	cutoff := now.Add(-l.window)

	var d Decision
	err := l.store.Update(ctx, key, l.window, func(stamps []time.Time) []time.Time {
		kept := make([]time.Time, 0, len(stamps)+1)
		for _, ts := range stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}

		if len(kept) >= l.limit {
			retry := l.window
			if len(kept) > 0 {
				retry = kept[0].Add(l.window).Sub(now)
			}
			d = Decision{Allowed: false, Limit: l.limit, Remaining: 0, RetryAfter: retry}
			return kept
		}

		kept = append(kept, now)
		d = Decision{Allowed: true, Limit: l.limit, Remaining: l.limit - len(kept)}
		return kept
	})
	if err != nil {
		return Decision{}, err
	}
	return d, nil
}

// Run 定期清理過期紀錄，直到 ctx 結束；Store 不支援清理時直接返回
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	sweeper, ok := l.store.(Sweeper)
	if !ok || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweeper.Sweep(ctx, l.now().Add(-l.window))
			if err != nil {
				common.LogWarn("清理限流紀錄失敗", zap.Error(err))
				continue
			}
			if n > 0 {
				common.LogDebug("已清理限流紀錄", zap.Int("count", n))
			}
		}
	}
}
