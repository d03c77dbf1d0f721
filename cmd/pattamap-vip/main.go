package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/pattamap/pattamap-vip/internal/authorization"
	"github.com/pattamap/pattamap-vip/internal/clock"
	"github.com/pattamap/pattamap-vip/internal/config"
	"github.com/pattamap/pattamap-vip/internal/migration"
	"github.com/pattamap/pattamap-vip/internal/notification"
	"github.com/pattamap/pattamap-vip/internal/observability"
	"github.com/pattamap/pattamap-vip/internal/ownership"
	"github.com/pattamap/pattamap-vip/internal/payment"
	"github.com/pattamap/pattamap-vip/internal/paymentqr"
	"github.com/pattamap/pattamap-vip/internal/pricing"
	"github.com/pattamap/pattamap-vip/internal/ratelimit"
	"github.com/pattamap/pattamap-vip/internal/server"
	"github.com/pattamap/pattamap-vip/internal/settlement"
	"github.com/pattamap/pattamap-vip/internal/subscription"
	"github.com/pattamap/pattamap-vip/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,

		// Functional Domains
		pricing.Module,
		ownership.Module,
		authorization.Module,
		paymentqr.Module,
		notification.Module,
		subscription.Module,
		settlement.Module,
		payment.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
