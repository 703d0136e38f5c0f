package db

import (
	"context"
	"time"

	"github.com/smallbiznis/clearline/internal/config"
	obslogger "github.com/smallbiznis/clearline/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprom "gorm.io/plugin/prometheus"
)

// statsRefreshSeconds is how often pool stats are copied into the Prometheus gauges.
const statsRefreshSeconds = 15

var Module = fx.Module("db",
	fx.Provide(New),
)

// New opens the database and applies pool settings from config.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 obslogger.NewGormLogger(log, gormlogger.Warn, 200*time.Millisecond),
		SkipDefaultTransaction: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	if err := instrument(conn, cfg); err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	}
	if cfg.DBMaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	}
	if cfg.DBConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)
	}
	if cfg.DBConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTime) * time.Second)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing database connection")
			return sqlDB.Close()
		},
	})

	return conn, nil
}

// instrument registers query tracing and connection pool metrics on conn.
func instrument(conn *gorm.DB, cfg config.Config) error {
	name := cfg.DBName
	if name == "" {
		name = cfg.DBType
	}
	if err := conn.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName(name),
		otelgorm.WithoutQueryVariables(),
	)); err != nil {
		return err
	}
	return conn.Use(gormprom.New(gormprom.Config{
		DBName:          name,
		RefreshInterval: statsRefreshSeconds,
	}))
}
