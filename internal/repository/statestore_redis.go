package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
	appErrors "github.com/zhenzhu143321/hxci-campus-portal-system/pkg/errors"
)

// RedisStateStore persists read-state keys in Redis and broadcasts every
// write on a pub/sub channel so other gateway instances (and other tabs
// connected to them) reconcile without polling.
type RedisStateStore struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisStateStore constructs the store. Change events publish on
// <channelPrefix>:state_events.
func NewRedisStateStore(client *redis.Client, channelPrefix string, logger *zap.Logger) *RedisStateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStateStore{
		client:  client,
		channel: channelPrefix + ":state_events",
		logger:  logger,
	}
}

// Get returns the stored value or ErrNotFound.
func (s *RedisStateStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", appErrors.ErrNotFound
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

// Set stores the value without expiry (read-state lives until logout) and
// publishes the change. Publish failures are logged, not returned: the
// write itself succeeded.
func (s *RedisStateStore) Set(ctx context.Context, key, value, origin string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	payload, err := json.Marshal(models.StateChange{Key: key, Value: value, Origin: origin})
	if err != nil {
		return nil
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		s.logger.Warn("state change publish failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Delete removes the key.
func (s *RedisStateStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Watch subscribes to the change channel, forwarding events whose key
// matches prefix until ctx is done.
func (s *RedisStateStore) Watch(ctx context.Context, prefix string) (<-chan models.StateChange, error) {
	sub := s.client.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	out := make(chan models.StateChange, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var change models.StateChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					s.logger.Warn("malformed state change event", zap.Error(err))
					continue
				}
				if !strings.HasPrefix(change.Key, prefix) {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
