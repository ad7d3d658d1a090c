package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/refocus/internal/config"
	"github.com/goodtune/refocus/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	counterKeyPrefix = "refocus:counter:"
	warningsKey      = "refocus:warnings"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client       *redis.Client
	counterStore *counterStore
	warningStore *warningStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := &Store{
		client:       client,
		counterStore: &counterStore{client: client},
		warningStore: &warningStore{client: client, limit: cfg.HistoryLimit},
	}

	return store, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client, shared with the Redis
// notification transport.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Counters returns the CounterStore implementation
func (s *Store) Counters() storage.CounterStore {
	return s.counterStore
}

// Warnings returns the WarningStore implementation
func (s *Store) Warnings() storage.WarningStore {
	return s.warningStore
}
