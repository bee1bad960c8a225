// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"trade-match-engine/internal/common/config"
	"trade-match-engine/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// RedisClient backs the profile, match score and external score caches.
type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	poolSize, minIdle := cfg.PoolSize, cfg.MinIdleConns
	if poolSize <= 0 {
		poolSize = 10
	}
	if minIdle <= 0 || minIdle > poolSize {
		minIdle = poolSize / 2
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     poolSize,
		MinIdleConns: minIdle,
	})
	return &RedisClient{Client: rdb}, nil
}

// Ping reports CACHE_FAILED so health checks and start-up retries see the
// same code as cache reads.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return errors.NewCacheFailedError("ping", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

func (c *RedisClient) GetClient() *redis.Client {
	return c.Client
}
