package levy

import (
	"github.com/smallbiznis/clearline/internal/levy/repository"
	"github.com/smallbiznis/clearline/internal/levy/service"
	"go.uber.org/fx"
)

var Module = fx.Module("levy.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
