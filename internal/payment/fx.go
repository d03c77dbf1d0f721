package payment

import (
	"github.com/pattamap/pattamap-vip/internal/payment/repository"
	"github.com/pattamap/pattamap-vip/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.webhook",
	fx.Provide(repository.Provide),
	fx.Provide(webhook.NewService),
)
