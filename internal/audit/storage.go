package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisStorage хранит журнал в списке Redis ограниченной длины.
type RedisStorage struct {
	rdb    *redis.Client
	key    string
	maxLen int64
}

func NewRedisStorage(rdb *redis.Client, key string, maxLen int64) *RedisStorage {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisStorage{rdb: rdb, key: key, maxLen: maxLen}
}

func (s *RedisStorage) WriteBatch(ctx context.Context, events []Event) error {
	values := make([]any, 0, len(events))
	for _, e := range events {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.ID, err)
		}
		values = append(values, raw)
	}

	// RPUSH + LTRIM одной транзакцией
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.key, values...)
		pipe.LTrim(ctx, s.key, -s.maxLen, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal write: %w", err)
	}
	return nil
}

func (s *RedisStorage) Recent(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		return []Event{}, nil
	}
	raw, err := s.rdb.LRange(ctx, s.key, int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("journal read: %w", err)
	}

	out := make([]Event, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var e Event
		if err := json.Unmarshal([]byte(raw[i]), &e); err != nil {
			return nil, fmt.Errorf("journal decode: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// MemoryStorage: журнал в памяти процесса, когда Redis не настроен.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
	maxLen int
}

func NewMemoryStorage(maxLen int) *MemoryStorage {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &MemoryStorage{maxLen: maxLen}
}

func (s *MemoryStorage) WriteBatch(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	if over := len(s.events) - s.maxLen; over > 0 {
		s.events = slices.Clone(s.events[over:])
	}
	return nil
}

func (s *MemoryStorage) Recent(_ context.Context, n int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n = min(n, len(s.events))
	out := make([]Event, 0, max(n, 0))
	for i := len(s.events) - 1; i >= len(s.events)-n; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}
