package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(runOnStart),
)

// runOnStart runs the embedded schema on postgres only; sqlite and mysql are provisioned out of band.
func runOnStart(conn *gorm.DB, log *zap.Logger) error {
	log = log.Named("migration")
	if name := conn.Dialector.Name(); name != "postgres" {
		log.Info("skipping embedded migrations", zap.String("dialect", name))
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB, log)
}
