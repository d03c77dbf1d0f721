package server

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pattamap/pattamap-vip/internal/observability/logger"
	obsmetrics "github.com/pattamap/pattamap-vip/internal/observability/metrics"
	"go.uber.org/zap"
)

const rateLimitReasonUserRate = "user-rate"

// PurchaseRateLimit throttles purchase attempts per user. A limiter backend
// failure lets the request through; the purchase lock still guards writes.
func (s *Server) PurchaseRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.purchaseLimiter == nil || !s.purchaseLimiter.Enabled() {
			c.Next()
			return
		}

		userID := userIDFromContext(c)
		if userID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		ctx := c.Request.Context()

		result, err := s.purchaseLimiter.AllowUser(ctx, userID.String())
		if err != nil {
			logger.WithContext(ctx, s.log).Warn("purchase rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			denyPurchaseRateLimit(c, s.log, endpoint, rateLimitReasonUserRate, result.RetryAfter, s.obsMetrics)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func denyPurchaseRateLimit(c *gin.Context, log *zap.Logger, endpoint, reason string, retryAfter time.Duration, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.WithContext(ctx, log).Warn("purchase rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, reason, metrics)

	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
