package subscription

import (
	"github.com/pattamap/pattamap-vip/internal/subscription/repository"
	"github.com/pattamap/pattamap-vip/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
