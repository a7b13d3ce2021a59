package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoReturnsJobResult(t *testing.T) {
	m := NewManager(2, 4)
	defer m.Close()

	boom := errors.New("boom")
	assert.NoError(t, m.Do(context.Background(), func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, m.Do(context.Background(), func(ctx context.Context) error { return boom }), boom)
	assert.EqualValues(t, 2, m.GetQueueStatus().ProcessedCount)
}

func TestDoBoundsConcurrency(t *testing.T) {
	const workers = 3
	m := NewManager(workers, 50)
	defer m.Close()

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Do(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(workers))
}

func TestDoQueueFull(t *testing.T) {
	m := NewManager(1, 1)
	defer m.Close()

	release := make(chan struct{})
	started := make(chan struct{})

	// 佔住唯一的 worker
	go func() {
		_ = m.Do(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	// 佔住唯一的隊列位置
	go func() {
		_ = m.Do(context.Background(), func(ctx context.Context) error { return nil })
	}()
	require.Eventually(t, func() bool { return m.GetQueueStatus().QueueLength == 1 }, time.Second, time.Millisecond)

	err := m.Do(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
}

func TestDoAfterClose(t *testing.T) {
	m := NewManager(1, 1)
	m.Close()

	err := m.Do(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
