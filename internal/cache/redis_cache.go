package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"dapurlima/backend/internal/domain"
)

type RedisMovementCache struct {
	client *redis.Client
}

func NewRedisMovementCache(addr string, password string, db int) *RedisMovementCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisMovementCache{client: client}
}

func (c *RedisMovementCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisMovementCache) Close() error {
	return c.client.Close()
}

func (c *RedisMovementCache) Get(ctx context.Context, key string) (*domain.MovementReport, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var report domain.MovementReport
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *RedisMovementCache) Set(ctx context.Context, key string, value *domain.MovementReport, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
