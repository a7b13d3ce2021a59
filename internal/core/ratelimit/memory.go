package ratelimit

import (
	"context"
	"sync"
	"time"

	"chef-session/internal/pkg/keylock"
)

// MemoryStore 行程內的限流紀錄，同一鍵的更新依序執行，不同鍵互不阻塞
type MemoryStore struct {
	locks   *keylock.KeyLock
	mu      sync.RWMutex
	records map[string][]time.Time
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Sweeper = (*MemoryStore)(nil)
)

// NewMemoryStore 創建記憶體 Store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:   keylock.New(),
		records: make(map[string][]time.Time),
	}
}

// Get 讀取紀錄副本
func (s *MemoryStore) Get(ctx context.Context, key string) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]time.Time(nil), s.records[key]...), nil
}

// Update 在鍵鎖內執行 fn，結果為空時刪除該鍵
func (s *MemoryStore) Update(ctx context.Context, key string, ttl time.Duration, fn func([]time.Time) []time.Time) error {
	unlock := s.locks.Lock(key)
	defer unlock()

	current, _ := s.Get(ctx, key)
	next := fn(current)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(next) == 0 {
		delete(s.records, key)
	} else {
		s.records[key] = next
	}
	return nil
}

// Purge 清除某個鍵
func (s *MemoryStore) Purge(ctx context.Context, key string) error {
	unlock := s.locks.Lock(key)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Sweep 刪除所有時間戳都不晚於 cutoff 的鍵
func (s *MemoryStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, stamps := range s.records {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

// Len 目前保存的鍵數量
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
