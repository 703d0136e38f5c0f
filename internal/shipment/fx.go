package shipment

import (
	"github.com/smallbiznis/clearline/internal/shipment/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("shipment.repository",
	fx.Provide(repository.NewRepository),
)
