// Package rdb provides the shared Redis client used by the event stream, the
// keyword store, the webhook limiter and the classifier lock.
package rdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sparks/internal/config"
	"github.com/smallbiznis/sparks/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redis",
	fx.Provide(New),
)

// New parses REDIS_URL and returns a client that is pinged on start and closed on stop.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*redis.Client, error) {
	url := strings.TrimSpace(cfg.RedisURL)
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	metrics.RedisErrorClassifier = IsRedisError

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis %s: %w", opts.Addr, err)
			}
			log.Info("redis connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

// IsRedisError reports whether err came from the Redis server or connection.
// redis.Nil is a cache miss, not a failure.
func IsRedisError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, redis.ErrClosed) {
		return true
	}
	var redisErr redis.Error
	return errors.As(err, &redisErr)
}
