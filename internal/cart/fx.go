package cart

import (
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const (
	redisPrefix = "digistore:cart:"
	cartTTL     = 30 * 24 * time.Hour
)

var Module = fx.Module("cart",
	fx.Provide(NewPersister),
	fx.Provide(NewService),
)

// NewPersister stores carts in Redis when a client is configured.
func NewPersister(client *redis.Client) Persister {
	if client == nil {
		return NewMemoryPersister()
	}
	return NewRedisPersister(client, redisPrefix, cartTTL)
}
