package tariff

import (
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/clearline/internal/cache"
	"github.com/smallbiznis/clearline/internal/config"
	tariffdomain "github.com/smallbiznis/clearline/internal/tariff/domain"
	"github.com/smallbiznis/clearline/internal/tariff/repository"
	"github.com/smallbiznis/clearline/internal/tariff/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("tariff.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(newTableCache),
	fx.Provide(fx.Annotate(
		func(cfg config.Config) time.Duration { return cfg.Redis.TariffCacheTTL },
		fx.ResultTags(`name:"tariff_cache_ttl"`),
	)),
	fx.Provide(service.NewService),
)

// newTableCache shares tariff tables through redis when it is configured.
func newTableCache(client *redis.Client, log *zap.Logger) cache.Cache[string, []tariffdomain.TariffRate] {
	if client == nil {
		return cache.NewTTLCache[string, []tariffdomain.TariffRate]()
	}
	return cache.NewRedisCache[[]tariffdomain.TariffRate](client, "clearline:", log)
}
