package declaration

import (
	"github.com/smallbiznis/clearline/internal/declaration/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("declaration.repository",
	fx.Provide(repository.NewRepository),
)
