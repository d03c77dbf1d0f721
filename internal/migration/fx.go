package migration

import (
	"context"

	"github.com/pattamap/pattamap-vip/internal/config"
	"github.com/pattamap/pattamap-vip/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if cfg.DBType != "postgres" {
			log.Warn("skipping embedded migrations for non-postgres database", zap.String("db_type", cfg.DBType))
		} else {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		}

		if cfg.BootstrapAdminUserID > 0 {
			return seed.EnsureAdminUser(context.Background(), conn, cfg.BootstrapAdminUserID)
		}
		return nil
	}),
)
