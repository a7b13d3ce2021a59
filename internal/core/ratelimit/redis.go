package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisKeyPrefix  = "chef:ratelimit:"
	maxWatchRetries = 10
)

// ErrConflict 同一鍵的並發更新在重試上限內仍未成功
var ErrConflict = errors.New("rate limit record update conflict")

// RedisStore 以 Redis 保存限流紀錄，多個實例共用同一份計數
//
// 更新使用 WATCH/MULTI 樂觀交易，鍵的 TTL 等於時間窗。
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore 創建 Redis Store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get 讀取紀錄
func (s *RedisStore) Get(ctx context.Context, key string) ([]time.Time, error) {
	return s.read(ctx, s.client, redisKeyPrefix+key)
}

// Update 以 WATCH 監看鍵，交易失敗時重試
func (s *RedisStore) Update(ctx context.Context, key string, ttl time.Duration, fn func([]time.Time) []time.Time) error {
	k := redisKeyPrefix + key

	txf := func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, k)
		if err != nil {
			return err
		}

		next := fn(current)
		data, err := encodeStamps(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(next) == 0 {
				pipe.Del(ctx, k)
			} else {
				pipe.Set(ctx, k, data, ttl)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, k)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("update rate limit record: %w", err)
	}
	return ErrConflict
}

// Purge 清除某個鍵
func (s *RedisStore) Purge(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

// getter Client 與 Tx 共有的讀取方法
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) read(ctx context.Context, c getter, key string) ([]time.Time, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rate limit record: %w", err)
	}
	return decodeStamps(data)
}

func encodeStamps(stamps []time.Time) ([]byte, error) {
	nanos := make([]int64, len(stamps))
	for i, ts := range stamps {
		nanos[i] = ts.UnixNano()
	}
	return json.Marshal(nanos)
}

func decodeStamps(data []byte) ([]time.Time, error) {
	var nanos []int64
	if err := json.Unmarshal(data, &nanos); err != nil {
		return nil, fmt.Errorf("decode rate limit record: %w", err)
	}
	stamps := make([]time.Time, len(nanos))
	for i, n := range nanos {
		stamps[i] = time.Unix(0, n)
	}
	return stamps, nil
}
