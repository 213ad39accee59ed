package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/digistore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNilLimiterAllows(t *testing.T) {
	var limiter *StorefrontLimiter
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowCheckout(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.AllowDownload(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNewStorefrontLimiterWithoutRedis(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, CheckoutRate: 1, CheckoutBurst: 1, DownloadRate: 1, DownloadBurst: 1}}
	assert.Nil(t, NewStorefrontLimiter(cfg, nil, zap.NewNop()))
}

func TestNilLockerRunsInline(t *testing.T) {
	var locker *Locker
	called := false
	err := locker.WithLock(context.Background(), "k", time.Second, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	sentinel := errors.New("boom")
	err = locker.WithLock(context.Background(), "k", time.Second, func() error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 50*time.Second, bucketTTL(0.2, 5))
	assert.Equal(t, 20*time.Second, bucketTTL(1, 10))
	assert.Equal(t, 2*time.Second, bucketTTL(100, 1))
}

func TestScriptValueCasts(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(1), toInt("1"))
	assert.InDelta(t, 2.5, toFloat("2.5"), 0.0001)
	assert.InDelta(t, 3.0, toFloat(int64(3)), 0.0001)
	assert.Equal(t, 0.0, toFloat(nil))
}
