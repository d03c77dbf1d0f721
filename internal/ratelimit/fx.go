package ratelimit

import (
	subscriptiondomain "github.com/pattamap/pattamap-vip/internal/subscription/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewPurchaseLimiter),
	fx.Provide(fx.Annotate(
		func(l *PurchaseLimiter) *PurchaseLimiter { return l },
		fx.As(new(subscriptiondomain.EntityLocker)),
	)),
)
