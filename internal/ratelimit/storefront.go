package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/digistore/internal/config"
	"go.uber.org/zap"
)

const (
	keyCheckoutIP  = "ratelimit:checkout:%s"
	keyDownloadIP  = "ratelimit:download:%s"
	keySubscribeIP = "ratelimit:newsletter:%s"
)

// StorefrontLimiter meters the public checkout, download and newsletter
// endpoints per client IP. A nil limiter allows everything.
type StorefrontLimiter struct {
	bucket *TokenBucket

	checkoutRate  float64
	checkoutBurst int
	downloadRate  float64
	downloadBurst int
}

func NewStorefrontLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *StorefrontLimiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil
	}
	if client == nil {
		log.Info("rate limiting disabled: redis not configured")
		return nil
	}
	if limitCfg.CheckoutRate <= 0 || limitCfg.CheckoutBurst <= 0 ||
		limitCfg.DownloadRate <= 0 || limitCfg.DownloadBurst <= 0 {
		log.Warn("rate limiting disabled: rates and bursts must be positive")
		return nil
	}
	return &StorefrontLimiter{
		bucket:        NewTokenBucket(client),
		checkoutRate:  limitCfg.CheckoutRate,
		checkoutBurst: limitCfg.CheckoutBurst,
		downloadRate:  limitCfg.DownloadRate,
		downloadBurst: limitCfg.DownloadBurst,
	}
}

func (l *StorefrontLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *StorefrontLimiter) AllowCheckout(ctx context.Context, clientIP string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyCheckoutIP, strings.TrimSpace(clientIP)), l.checkoutRate, l.checkoutBurst)
}

func (l *StorefrontLimiter) AllowDownload(ctx context.Context, clientIP string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyDownloadIP, strings.TrimSpace(clientIP)), l.downloadRate, l.downloadBurst)
}

// AllowSubscribe shares the checkout rate under its own key.
func (l *StorefrontLimiter) AllowSubscribe(ctx context.Context, clientIP string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keySubscribeIP, strings.TrimSpace(clientIP)), l.checkoutRate, l.checkoutBurst)
}
