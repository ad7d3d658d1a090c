package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/refocus/internal/storage"
	"go.etcd.io/bbolt"
)

type warningStore struct {
	db *bbolt.DB
}

func (s *warningStore) Add(ctx context.Context, record storage.WarningRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	key, err := timeKey("warning", record.Timestamp)
	if err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = key
	}
	return putBucketValue(ctx, s.db, bucketWarnings, key, record)
}

func (s *warningStore) Get(ctx context.Context, id string) (storage.WarningRecord, error) {
	var record storage.WarningRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketWarnings))
		if b == nil {
			return storage.ErrNotFound
		}
		// Generated IDs are the record's key.
		if v := b.Get([]byte(id)); v != nil {
			if err := unmarshal(v, &record); err != nil {
				return err
			}
			if record.ID == id {
				return nil
			}
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var candidate storage.WarningRecord
			if err := unmarshal(v, &candidate); err != nil {
				return err
			}
			if candidate.ID == id {
				record = candidate
				return nil
			}
		}
		return storage.ErrNotFound
	})
	if err != nil {
		return storage.WarningRecord{}, err
	}
	return record, nil
}

func (s *warningStore) List(ctx context.Context, filter storage.WarningFilter) ([]storage.WarningRecord, error) {
	records := make([]storage.WarningRecord, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketWarnings))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var record storage.WarningRecord
			if err := unmarshal(v, &record); err != nil {
				return err
			}
			if !filter.Matches(record) {
				continue
			}
			records = append(records, record)
			if filter.Limit > 0 && len(records) >= filter.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *warningStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketWarnings))
		if b == nil {
			return nil
		}

		// Keys sort by timestamp, so collect the expired prefix and stop at
		// the first record that is new enough.
		var expired [][]byte
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var record storage.WarningRecord
			if err := unmarshal(v, &record); err != nil {
				return err
			}
			if !record.Timestamp.Before(cutoff) {
				break
			}
			expired = append(expired, append([]byte(nil), k...))
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("delete warning %s: %w", k, err)
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}
