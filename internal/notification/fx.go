package notification

import (
	"context"

	notificationdomain "github.com/pattamap/pattamap-vip/internal/notification/domain"
	"github.com/pattamap/pattamap-vip/internal/notification/repository"
	"github.com/pattamap/pattamap-vip/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.dispatcher",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewDispatcher),
	fx.Provide(func(d *service.Dispatcher) notificationdomain.Dispatcher { return d }),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, d *service.Dispatcher) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			d.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return d.Stop(ctx)
		},
	})
}
