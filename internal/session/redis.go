package session

import (
	"context"
	"errors"
	"time"

	"ebike-booking/internal/redisclient"

	"github.com/go-redis/redis/v8"
)

// RedisStore shares session state across instances.
type RedisStore struct {
	client *redisclient.Client
}

// NewRedisStore wraps a connected redis client.
func NewRedisStore(client *redisclient.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, key Key, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.GetClient().Set(ctx, key.String(), value, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key Key) ([]byte, error) {
	val, err := s.client.GetClient().Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return val, err
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	return s.client.GetClient().Del(ctx, key.String()).Err()
}

func (s *RedisStore) Incr(ctx context.Context, key Key, window time.Duration) (int64, error) {
	return s.client.IncrWindow(ctx, key.String(), window)
}
