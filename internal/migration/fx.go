package migration

import (
	"github.com/khaja-app/khaja/internal/config"
	"github.com/khaja-app/khaja/internal/seed"
	subscriptiondomain "github.com/khaja-app/khaja/internal/subscription/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql fall back to schema sync; the versioned
			// migration files target postgres.
			if err := conn.AutoMigrate(
				&subscriptiondomain.Subscription{},
				&subscriptiondomain.ServiceUsage{},
			); err != nil {
				return err
			}
		}

		if cfg.SeedDemoData {
			return seed.EnsureDemoSubscription(conn)
		}
		return nil
	}),
)
