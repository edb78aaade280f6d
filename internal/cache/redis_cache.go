package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"salesdesk/backend/internal/domain"
)

type RedisTimelineCache struct {
	client *redis.Client
}

func NewRedisTimelineCache(addr string, password string, db int) *RedisTimelineCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisTimelineCache{client: client}
}

func (c *RedisTimelineCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisTimelineCache) Close() error {
	return c.client.Close()
}

func (c *RedisTimelineCache) Get(ctx context.Context, key string) ([]domain.SaleEvent, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var events []domain.SaleEvent
	if err := json.Unmarshal([]byte(val), &events); err != nil {
		return nil, false, err
	}
	return events, true, nil
}

func (c *RedisTimelineCache) Set(ctx context.Context, key string, events []domain.SaleEvent, ttl time.Duration) error {
	payload, err := json.Marshal(events)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisTimelineCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
