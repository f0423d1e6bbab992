package universe

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

const cacheKeyPrefix = "ichimoku:universe:"

// RedisCache stores the last fetched universe under one key per index.
type RedisCache struct {
	rdb *redis.Client
	key string
}

func NewRedisCache(rdb *redis.Client, index string) *RedisCache {
	return &RedisCache{rdb: rdb, key: cacheKeyPrefix + index}
}

func (c *RedisCache) Get(ctx context.Context) ([]string, error) {
	data, err := c.rdb.Get(ctx, c.key).Bytes()
	if err != nil {
		return nil, err
	}
	var symbols []string
	if err := json.Unmarshal(data, &symbols); err != nil {
		return nil, err
	}
	return symbols, nil
}

func (c *RedisCache) Set(ctx context.Context, symbols []string, ttl time.Duration) error {
	data, err := json.Marshal(symbols)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key, data, ttl).Err()
}
