package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LJTian/ToramListener/internal/collector"
	"github.com/redis/go-redis/v9"
)

// RedisStore 水位存放在 <collection>:<key> 这个字符串键里
type RedisStore struct {
	Redis *redis.Client
	key   string
}

func NewRedisStore(addr, collection, key string) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis ping failed", "addr", addr, "err", err)
	}

	return &RedisStore{Redis: rdb, key: collection + ":" + key}
}

func (s *RedisStore) Key() string {
	return s.key
}

func (s *RedisStore) Get(ctx context.Context) (collector.NewsID, bool, error) {
	v, err := s.Redis.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: redis get %s: %v", ErrStore, s.key, err)
	}
	return collector.NewsID(v), true, nil
}

func (s *RedisStore) Set(ctx context.Context, id collector.NewsID) error {
	if err := s.Redis.Set(ctx, s.key, string(id), 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %v", ErrStore, s.key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.Redis.Close()
}
