package duty

import (
	"github.com/smallbiznis/clearline/internal/duty/service"
	"go.uber.org/fx"
)

var Module = fx.Module("duty.service",
	fx.Provide(service.NewService),
)
