package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pattamap/pattamap-vip/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyPurchaseUser = "vip:purchase:user:%s"
	keyPurchaseLock = "vip:purchase:%s:%s"

	defaultPurchaseLockTTL = 15 * time.Second
)

// PurchaseLimiter throttles purchase requests per user and serializes
// purchases per target entity. Without redis every call is a no-op.
type PurchaseLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	userRate  float64
	userBurst int
	lockTTL   time.Duration
}

func NewPurchaseLimiter(cfg config.Config, client *redis.Client) (*PurchaseLimiter, error) {
	limitCfg := cfg.RateLimit
	if limitCfg.Enabled && (limitCfg.PurchaseUserRate <= 0 || limitCfg.PurchaseUserBurst <= 0) {
		return nil, errors.New("purchase user rate limit must be positive")
	}

	lockTTL := time.Duration(limitCfg.PurchaseLockTTLSeconds) * time.Second
	if lockTTL <= 0 {
		lockTTL = defaultPurchaseLockTTL
	}

	return &PurchaseLimiter{
		enabled:   limitCfg.Enabled && client != nil,
		bucket:    NewTokenBucket(client),
		locker:    NewLocker(client),
		userRate:  limitCfg.PurchaseUserRate,
		userBurst: limitCfg.PurchaseUserBurst,
		lockTTL:   lockTTL,
	}, nil
}

func (l *PurchaseLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *PurchaseLimiter) AllowUser(ctx context.Context, userID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPurchaseUser, strings.TrimSpace(userID)), l.userRate, l.userBurst)
}

// LockEntity takes the per-entity purchase lock. acquired is true with an
// empty token when no redis is configured.
func (l *PurchaseLimiter) LockEntity(ctx context.Context, entityType, entityID string) (string, bool, error) {
	if l == nil || l.locker == nil {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, PurchaseLockKey(entityType, entityID), l.lockTTL)
}

func (l *PurchaseLimiter) ReleaseEntity(ctx context.Context, entityType, entityID, token string) error {
	if l == nil || l.locker == nil {
		return nil
	}
	return l.locker.Release(ctx, PurchaseLockKey(entityType, entityID), token)
}

func PurchaseLockKey(entityType, entityID string) string {
	return fmt.Sprintf(keyPurchaseLock, strings.TrimSpace(entityType), strings.TrimSpace(entityID))
}
