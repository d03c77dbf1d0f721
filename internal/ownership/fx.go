package ownership

import (
	"github.com/pattamap/pattamap-vip/internal/ownership/repository"
	"github.com/pattamap/pattamap-vip/internal/ownership/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ownership.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
