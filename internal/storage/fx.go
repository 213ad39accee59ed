package storage

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/smallbiznis/digistore/internal/clock"
	"github.com/smallbiznis/digistore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("storage",
	fx.Provide(NewStore),
	fx.Provide(NewSigner),
)

func NewStore(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Store, error) {
	log = log.Named("storage")
	if strings.TrimSpace(cfg.NATS.URL) == "" {
		log.Warn("NATS_URL not set, assets are kept in memory")
		return NewMemoryStore(), nil
	}

	store, err := NewJetStreamStore(cfg.NATS.URL, cfg.NATS.Bucket)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := store.Init(ctx); err != nil {
				return err
			}
			log.Info("asset bucket ready", zap.String("bucket", cfg.NATS.Bucket))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			store.Close()
			return nil
		},
	})
	return store, nil
}

func NewSigner(cfg config.Config, clk clock.Clock, log *zap.Logger) (*URLSigner, error) {
	secret := []byte(cfg.AssetURLSecret)
	if len(secret) == 0 {
		if cfg.IsProduction() {
			log.Warn("ASSET_URL_SECRET not set, signed asset urls will not survive restarts")
		}
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
	}
	ttl := time.Duration(cfg.AssetURLTTLSecs) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return NewURLSigner(secret, cfg.PublicBaseURL, ttl, clk), nil
}
