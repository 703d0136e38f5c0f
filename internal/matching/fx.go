package matching

import (
	"github.com/smallbiznis/clearline/internal/matching/reasoning"
	"github.com/smallbiznis/clearline/internal/matching/repository"
	"github.com/smallbiznis/clearline/internal/matching/service"
	"go.uber.org/fx"
)

var Module = fx.Module("matching.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(reasoning.NewClient),
	fx.Provide(service.NewService),
)
