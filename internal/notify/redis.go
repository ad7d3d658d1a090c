package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/goodtune/refocus/internal/metrics"
)

const channelPrefix = "refocus:notify:tab:"

// Channel returns the Redis channel carrying notifications for a tab.
func Channel(tabID int) string {
	return channelPrefix + strconv.Itoa(tabID)
}

// RedisPublisher sends notifications over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisPublisher creates a publisher on an existing client.
func NewRedisPublisher(client *redis.Client, logger zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		logger: logger.With().Str("component", "notify").Str("transport", "redis").Logger(),
	}
}

// Send publishes msg to the tab's channel. Failures are logged and dropped.
func (p *RedisPublisher) Send(tabID int, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		p.logger.Warn().Err(err).Msg("Failed to encode notification")
		return
	}

	if err := p.client.Publish(context.Background(), Channel(tabID), payload).Err(); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		p.logger.Warn().Err(err).Int("tab_id", tabID).Msg("Failed to publish notification")
		return
	}
	metrics.NotificationsTotal.WithLabelValues("published").Inc()
}

// RedisSubscriber feeds notifications published by any daemon into a
// local hub.
type RedisSubscriber struct {
	client *redis.Client
	hub    *Hub
	logger zerolog.Logger
}

// NewRedisSubscriber creates a subscriber delivering into hub.
func NewRedisSubscriber(client *redis.Client, hub *Hub, logger zerolog.Logger) *RedisSubscriber {
	return &RedisSubscriber{
		client: client,
		hub:    hub,
		logger: logger.With().Str("component", "notify").Str("transport", "redis").Logger(),
	}
}

// Subscribe starts listening and returns once the subscription is
// confirmed. Messages are delivered on a background goroutine until ctx is
// cancelled.
func (s *RedisSubscriber) Subscribe(ctx context.Context) error {
	pubsub := s.client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				s.dispatch(m)
			}
		}
	}()

	s.logger.Info().Str("pattern", channelPrefix+"*").Msg("Subscribed to notifications")
	return nil
}

func (s *RedisSubscriber) dispatch(m *redis.Message) {
	tabID, err := strconv.Atoi(strings.TrimPrefix(m.Channel, channelPrefix))
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("malformed").Inc()
		s.logger.Debug().Str("channel", m.Channel).Msg("Ignoring notification on malformed channel")
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
		metrics.NotificationsTotal.WithLabelValues("malformed").Inc()
		s.logger.Debug().Err(err).Int("tab_id", tabID).Msg("Ignoring malformed notification")
		return
	}

	s.hub.Send(tabID, msg)
}
