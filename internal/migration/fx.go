package migration

import (
	accountdomain "github.com/tokengate/tokengate/internal/account/domain"
	"github.com/tokengate/tokengate/internal/config"
	orderdomain "github.com/tokengate/tokengate/internal/order/domain"
	usagedomain "github.com/tokengate/tokengate/internal/usage/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Versioned migrations target postgres. Other dialects (local mysql
		// and sqlite setups) take the schema from the models directly.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&accountdomain.Account{},
				&usagedomain.UsageRecord{},
				&orderdomain.Order{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
