package ratelimit

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(store Store) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	l := New(store, 5, time.Minute)
	l.now = clock.Now
	return l, clock
}

func TestAdmitSixthRequestDenied(t *testing.T) {
	l, clock := newTestLimiter(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Admit(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 4-i, d.Remaining)
		clock.Advance(time.Second)
	}

	d, err := l.Admit(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	// 最早的請求在 55 秒後離開時間窗
	assert.Equal(t, 55*time.Second, d.RetryAfter)
}

func TestAdmitDenyHasNoSideEffect(t *testing.T) {
	store := NewMemoryStore()
	l, _ := newTestLimiter(store)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := l.Admit(ctx, "k")
		require.NoError(t, err)
	}

	stamps, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, stamps, 5)
}

func TestAdmitWindowSlides(t *testing.T) {
	l, clock := newTestLimiter(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = l.Admit(ctx, "k")
	}
	d, _ := l.Admit(ctx, "k")
	require.False(t, d.Allowed)

	// 剛好滿一個時間窗的紀錄視為過期
	clock.Advance(time.Minute)
	d, err := l.Admit(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestAdmitKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = l.Admit(ctx, "a")
	}
	d, _ := l.Admit(ctx, "a")
	assert.False(t, d.Allowed)

	d, _ = l.Admit(ctx, "b")
	assert.True(t, d.Allowed)
}

func TestAdmitConcurrentSameKey(t *testing.T) {
	l := New(NewMemoryStore(), 5, time.Minute)
	ctx := context.Background()

	var allowed int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Admit(ctx, "burst")
			assert.NoError(t, err)
			if d.Allowed {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, allowed)
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()
	l, clock := newTestLimiter(store)
	ctx := context.Background()

	_, _ = l.Admit(ctx, "old")
	clock.Advance(45 * time.Second)
	_, _ = l.Admit(ctx, "recent")
	clock.Advance(30 * time.Second)

	n, err := store.Sweep(ctx, clock.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Len())

	stamps, _ := store.Get(ctx, "recent")
	assert.Len(t, stamps, 1)
}

func TestRunStopsWithContext(t *testing.T) {
	l := New(NewMemoryStore(), 5, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		l.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()

	store := NewRedisStore(client)
	key := "test-" + time.Now().Format("150405.000000")
	defer store.Purge(ctx, key)

	l := New(store, 5, time.Minute)

	var allowed int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Admit(ctx, key)
			if err == nil && d.Allowed {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 5, allowed)

	ttl, err := client.TTL(ctx, redisKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
