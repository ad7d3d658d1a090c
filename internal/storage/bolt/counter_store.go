package bolt

import (
	"context"
	"fmt"

	"github.com/goodtune/refocus/internal/storage"
	"go.etcd.io/bbolt"
)

type counterStore struct {
	db *bbolt.DB
}

func (s *counterStore) Get(ctx context.Context, keys ...storage.Key) (storage.Snapshot, error) {
	snapshot := make(storage.Snapshot, len(keys))
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketCounters))
		if b == nil {
			return fmt.Errorf("counters bucket missing")
		}
		for _, key := range keys {
			raw := b.Get([]byte(key))
			if raw == nil {
				continue
			}
			var value int64
			if err := unmarshal(raw, &value); err != nil {
				return fmt.Errorf("counter %s: %w", key, err)
			}
			snapshot[key] = value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *counterStore) Set(ctx context.Context, key storage.Key, value int64) error {
	return putBucketValue(ctx, s.db, bucketCounters, string(key), value)
}
