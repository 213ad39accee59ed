package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/digistore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPrefix = "digistore:"

var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
	fx.Provide(NewCache),
)

// NewRedisClient returns the shared Redis client, or nil when REDIS_ADDR is unset.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if !cfg.Redis.Enabled() {
		log.Info("redis disabled: cache, cart persistence, rate limits and locks fall back")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

func NewCache(client *redis.Client) Cache {
	if client == nil {
		return NoopCache{}
	}
	return NewRedisCache(client, keyPrefix+"cache:")
}
