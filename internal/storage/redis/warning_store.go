package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/refocus/internal/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type warningStore struct {
	client *redis.Client
	limit  int
}

// Add appends a warning to the history sorted set, trimming the oldest
// entries beyond the configured limit
func (s *warningStore) Add(ctx context.Context, record storage.WarningRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	member, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal warning: %w", err)
	}

	script := redis.NewScript(addWarningScript)
	keys := []string{warningsKey}
	args := []interface{}{
		record.Timestamp.UnixMilli(),
		string(member),
		s.limit,
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// Get scans the history for the record with the given ID
func (s *warningStore) Get(ctx context.Context, id string) (storage.WarningRecord, error) {
	var cursor uint64
	for {
		members, next, err := s.client.ZScan(ctx, warningsKey, cursor, "", 100).Result()
		if err != nil {
			return storage.WarningRecord{}, err
		}
		// ZSCAN replies alternate member and score
		for i := 0; i < len(members); i += 2 {
			var record storage.WarningRecord
			if err := json.Unmarshal([]byte(members[i]), &record); err != nil {
				continue
			}
			if record.ID == id {
				return record, nil
			}
		}
		if next == 0 {
			return storage.WarningRecord{}, storage.ErrNotFound
		}
		cursor = next
	}
}

// List returns warnings newest first
func (s *warningStore) List(ctx context.Context, filter storage.WarningFilter) ([]storage.WarningRecord, error) {
	rangeBy := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if filter.StartTime != nil {
		rangeBy.Min = strconv.FormatInt(filter.StartTime.UnixMilli(), 10)
	}
	if filter.EndTime != nil {
		rangeBy.Max = strconv.FormatInt(filter.EndTime.UnixMilli(), 10)
	}
	// Only push the limit down when nothing is filtered client-side
	if filter.Kind == "" && filter.TabID == nil && filter.Limit > 0 {
		rangeBy.Count = int64(filter.Limit)
	}

	members, err := s.client.ZRevRangeByScore(ctx, warningsKey, rangeBy).Result()
	if err != nil {
		return nil, err
	}

	records := make([]storage.WarningRecord, 0, len(members))
	for _, member := range members {
		var record storage.WarningRecord
		if err := json.Unmarshal([]byte(member), &record); err != nil {
			continue
		}
		if !filter.Matches(record) {
			continue
		}
		records = append(records, record)
		if filter.Limit > 0 && len(records) >= filter.Limit {
			break
		}
	}

	return records, nil
}

// DeleteBefore removes warnings strictly older than cutoff
func (s *warningStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	max := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)
	deleted, err := s.client.ZRemRangeByScore(ctx, warningsKey, "-inf", max).Result()
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}
