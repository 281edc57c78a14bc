package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore is a Redis-backed Store for production use. Record TTLs are
// enforced by Redis key expiry; Put maps to a plain SET so concurrent writes
// resolve last-write-wins at the server.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Store on the given Redis client using the
// standard refresh-token key prefix.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: KeyPrefix}
}

func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return errors.New("[RedisStore.Put] key cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("[RedisStore.Put] ttl must be positive")
	}

	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return errors.Wrapf(ErrUnavailable, "[RedisStore.Put] redis set %q: %s", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrNotFound
	}

	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", errors.Wrapf(ErrUnavailable, "[RedisStore.Get] redis get %q: %s", key, err)
	}
	return value, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	removed, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return false, errors.Wrapf(ErrUnavailable, "[RedisStore.Delete] redis del %q: %s", key, err)
	}
	return removed > 0, nil
}
