package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goodtune/refocus/internal/storage"
	"github.com/redis/go-redis/v9"
)

type counterStore struct {
	client *redis.Client
}

// Get fetches the requested counters with a single MGET
func (s *counterStore) Get(ctx context.Context, keys ...storage.Key) (storage.Snapshot, error) {
	snapshot := make(storage.Snapshot, len(keys))
	if len(keys) == 0 {
		return snapshot, nil
	}

	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = counterKeyPrefix + string(key)
	}

	values, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, err
	}

	for i, raw := range values {
		if raw == nil {
			continue
		}
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("counter %s: unexpected type %T", keys[i], raw)
		}
		value, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse counter %s: %w", keys[i], err)
		}
		snapshot[keys[i]] = value
	}

	return snapshot, nil
}

// Set overwrites a counter value
func (s *counterStore) Set(ctx context.Context, key storage.Key, value int64) error {
	return s.client.Set(ctx, counterKeyPrefix+string(key), value, 0).Err()
}
