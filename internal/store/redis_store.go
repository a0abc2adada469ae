package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mercaline/chat-service/internal/domain"
)

// Config holds Redis connection configuration.
type Config struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// redisStore implements PresenceUnreadStore using Redis.
type redisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed presence and unseen-counter store.
func NewRedisStore(cfg Config) (PresenceUnreadStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisStore{client: client}, nil
}

// Redis key patterns:
// presence:online:{role}:{id}          STRING "1" with TTL  - online flag
// chat:unseen:{role}:{conversation_id} STRING counter       - unseen messages
//
// The role tag is part of the key, mirroring domain.Identity, so a
// customer and a merchant with equal raw ids occupy distinct keys.

func presenceKey(id domain.Identity) string {
	return fmt.Sprintf("presence:online:%s:%s", id.Role, id.ID)
}

func unseenKey(recipient domain.Role, conversationID string) string {
	return fmt.Sprintf("chat:unseen:%s:%s", recipient, conversationID)
}

func (s *redisStore) SetPresence(ctx context.Context, id domain.Identity, ttl time.Duration) error {
	if err := s.client.Set(ctx, presenceKey(id), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to set presence for %s: %w", id, err)
	}
	return nil
}

func (s *redisStore) ClearPresence(ctx context.Context, id domain.Identity) error {
	if err := s.client.Del(ctx, presenceKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to clear presence for %s: %w", id, err)
	}
	return nil
}

func (s *redisStore) IsOnline(ctx context.Context, id domain.Identity) (bool, error) {
	n, err := s.client.Exists(ctx, presenceKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence for %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *redisStore) IncrementUnseen(ctx context.Context, recipient domain.Role, conversationID string) (int64, error) {
	count, err := s.client.Incr(ctx, unseenKey(recipient, conversationID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment unseen counter: %w", err)
	}
	return count, nil
}

func (s *redisStore) ResetUnseen(ctx context.Context, recipient domain.Role, conversationID string) error {
	if err := s.client.Del(ctx, unseenKey(recipient, conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to reset unseen counter: %w", err)
	}
	return nil
}

func (s *redisStore) GetUnseen(ctx context.Context, recipient domain.Role, conversationID string) (int64, error) {
	count, err := s.client.Get(ctx, unseenKey(recipient, conversationID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read unseen counter: %w", err)
	}
	return count, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
