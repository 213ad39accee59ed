package server

import (
	"context"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/digistore/internal/observability/logger"
	"github.com/smallbiznis/digistore/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	rateLimitEndpointCheckout   = "checkout"
	rateLimitEndpointDownload   = "download"
	rateLimitEndpointNewsletter = "newsletter"
	rateLimitReasonClientIP     = "client-ip"
)

type allowFunc func(ctx context.Context, clientIP string) (*ratelimit.Result, error)

// CheckoutRateLimit fails closed: a limiter error rejects the request.
func (s *Server) CheckoutRateLimit() gin.HandlerFunc {
	return s.rateLimit(rateLimitEndpointCheckout, false, func(ctx context.Context, ip string) (*ratelimit.Result, error) {
		return s.limiter.AllowCheckout(ctx, ip)
	})
}

// DownloadRateLimit fails open so a Redis outage never blocks paid downloads.
func (s *Server) DownloadRateLimit() gin.HandlerFunc {
	return s.rateLimit(rateLimitEndpointDownload, true, func(ctx context.Context, ip string) (*ratelimit.Result, error) {
		return s.limiter.AllowDownload(ctx, ip)
	})
}

func (s *Server) NewsletterRateLimit() gin.HandlerFunc {
	return s.rateLimit(rateLimitEndpointNewsletter, false, func(ctx context.Context, ip string) (*ratelimit.Result, error) {
		return s.limiter.AllowSubscribe(ctx, ip)
	})
}

func (s *Server) rateLimit(endpoint string, failOpen bool, allow allowFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := allow(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("rate limit check failed",
				zap.String("endpoint", endpoint),
				zap.Bool("fail_open", failOpen),
				zap.Error(err),
			)
			if failOpen {
				c.Next()
				return
			}
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if !result.Allowed {
			if result.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
			}
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, rateLimitReasonClientIP)
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
