package lookup

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// hashKey is the single Redis hash holding every lookup entry.
const hashKey = "ammledger:pool_lookup"

// RedisCache persists the lookup table in a Redis hash, for deployments
// where multiple engine instances share one index.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Load(ctx context.Context) (map[string]string, error) {
	entries, err := c.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load lookup hash: %w", err)
	}
	return entries, nil
}

func (c *RedisCache) Put(ctx context.Context, key, pool string) error {
	if err := c.client.HSet(ctx, hashKey, key, pool).Err(); err != nil {
		return fmt.Errorf("put lookup entry: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
