package cache

import (
	"context"
	"sync"
	"time"

	"chef-session/internal/infrastructure/config"
	"chef-session/internal/pkg/common"

	"go.uber.org/zap"
)

// CacheManager 記憶體食譜快取
//
// MaxSize 與 TTL 為 0 時不淘汰也不過期。
type CacheManager struct {
	config config.CacheConfig
	mu     sync.RWMutex
	store  map[string]*cacheEntry
	stats  cacheStats
	now    func() time.Time
	done   chan struct{}
	once   sync.Once
}

var _ RecipeCache = (*CacheManager)(nil)

// cacheEntry 緩存條目
type cacheEntry struct {
	recipes     []common.Recipe
	expiresAt   time.Time
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int
}

// cacheStats 緩存統計
type cacheStats struct {
	hits      int64
	misses    int64
	evictions int64
}

// NewManager 創建新的緩存管理器
func NewManager(cfg config.CacheConfig) *CacheManager {
	m := &CacheManager{
		config: cfg,
		store:  make(map[string]*cacheEntry),
		now:    time.Now,
		done:   make(chan struct{}),
	}

	// 只有設定 TTL 時才需要定期清理
	if cfg.TTL > 0 && cfg.CleanupInterval > 0 {
		go m.startCleanup()
	}

	common.LogInfo("快取管理員已初始化",
		zap.Int("最大容量", cfg.MaxSize),
		zap.Duration("存活時間", cfg.TTL),
		zap.Duration("清理間隔", cfg.CleanupInterval),
	)

	return m
}

// Get 獲取緩存值，回傳副本
func (m *CacheManager) Get(ctx context.Context, key string) ([]common.Recipe, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.store[key]
	if !exists {
		m.stats.misses++
		common.LogCacheMiss("recipes", key)
		return nil, false, nil
	}

	now := m.now()
	if m.expired(entry, now) {
		delete(m.store, key)
		m.stats.evictions++
		m.stats.misses++
		common.LogCacheMiss("recipes", key)
		return nil, false, nil
	}

	// 更新訪問統計
	entry.lastAccess = now
	entry.accessCount++
	m.stats.hits++

	common.LogCacheHit("recipes", key)
	return common.CloneRecipes(entry.recipes), true, nil
}

// Set 設置緩存值，存入副本
func (m *CacheManager) Set(ctx context.Context, key string, recipes []common.Recipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.store[key]; !exists && m.config.MaxSize > 0 && len(m.store) >= m.config.MaxSize {
		// 先清理過期項目，仍然不足再淘汰最少使用的項目
		if m.cleanup() == 0 {
			m.evictLRU()
		}
	}

	now := m.now()
	entry := &cacheEntry{
		recipes:    common.CloneRecipes(recipes),
		createdAt:  now,
		lastAccess: now,
	}
	if m.config.TTL > 0 {
		entry.expiresAt = now.Add(m.config.TTL)
	}
	m.store[key] = entry

	common.LogDebug("快取已儲存",
		zap.String("鍵", key),
		zap.Int("食譜數量", len(recipes)),
	)
	return nil
}

// Purge 清空緩存
func (m *CacheManager) Purge(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store = make(map[string]*cacheEntry)
	return nil
}

func (m *CacheManager) expired(entry *cacheEntry, now time.Time) bool {
	return !entry.expiresAt.IsZero() && now.After(entry.expiresAt)
}

// startCleanup 啟動清理過期緩存的協程
func (m *CacheManager) startCleanup() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			m.cleanup()
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}

// cleanup 清理過期的緩存，呼叫端需持有寫鎖
func (m *CacheManager) cleanup() int {
	now := m.now()
	count := 0

	for key, entry := range m.store {
		if m.expired(entry, now) {
			delete(m.store, key)
			count++
			m.stats.evictions++
		}
	}

	if count > 0 {
		common.LogDebug("Cleaned up expired cache entries",
			zap.Int("count", count),
			zap.Int64("total_evictions", m.stats.evictions),
			zap.Int("remaining_size", len(m.store)),
		)
	}

	return count
}

// evictLRU 淘汰訪問次數最少、最久未使用的項目
func (m *CacheManager) evictLRU() {
	var oldestKey string
	var oldestAccess time.Time
	var lowestAccessCount int

	for key, entry := range m.store {
		if oldestKey == "" ||
			entry.accessCount < lowestAccessCount ||
			(entry.accessCount == lowestAccessCount && entry.lastAccess.Before(oldestAccess)) {
			oldestKey = key
			oldestAccess = entry.lastAccess
			lowestAccessCount = entry.accessCount
		}
	}

	if oldestKey != "" {
		delete(m.store, oldestKey)
		m.stats.evictions++
		common.LogDebug("快取已淘汰(LRU)",
			zap.String("鍵", oldestKey),
		)
	}
}

// GetStats 獲取緩存統計信息
func (m *CacheManager) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ratio := 0.0
	if total := m.stats.hits + m.stats.misses; total > 0 {
		ratio = float64(m.stats.hits) / float64(total)
	}

	return map[string]interface{}{
		"size":      len(m.store),
		"max_size":  m.config.MaxSize,
		"hits":      m.stats.hits,
		"misses":    m.stats.misses,
		"evictions": m.stats.evictions,
		"hit_ratio": ratio,
	}
}

// Close 關閉緩存管理器
func (m *CacheManager) Close() error {
	m.once.Do(func() { close(m.done) })

	m.mu.Lock()
	defer m.mu.Unlock()

	m.store = make(map[string]*cacheEntry)
	common.LogInfo("快取管理員已關閉",
		zap.Int64("命中次數", m.stats.hits),
		zap.Int64("未命中次數", m.stats.misses),
		zap.Int64("淘汰次數", m.stats.evictions),
	)
	return nil
}
