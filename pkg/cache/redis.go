package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-adp-comments/pkg/config"
)

const defaultPingTimeout = 5 * time.Second

// NewRedis returns a Redis client for the configured topology: a single
// node from host/port, a cluster when several addresses are listed, or a
// sentinel-managed failover group when a master name is set.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	addrs := cfg.Addrs
	if len(addrs) == 0 {
		addrs = []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      addrs,
		MasterName: cfg.MasterName,
		Password:   cfg.Password,
		DB:         cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %v: %w", addrs, err)
	}
	return client, nil
}
