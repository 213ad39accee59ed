package migration

import (
	"context"
	"strings"

	"github.com/smallbiznis/digistore/internal/config"
	"github.com/smallbiznis/digistore/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if strings.EqualFold(strings.TrimSpace(cfg.DBType), "postgres") {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else if err := AutoMigrate(conn); err != nil {
			return err
		}

		if cfg.SeedDemoCatalog {
			seeded, err := seed.EnsureDemoCatalog(context.Background(), conn)
			if err != nil {
				return err
			}
			if seeded {
				log.Info("demo catalog seeded")
			}
		}
		return nil
	}),
)
