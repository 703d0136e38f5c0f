package scheduler

import (
	"context"

	"github.com/smallbiznis/clearline/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(NewScheduler),
)

func NewScheduler(lc fx.Lifecycle, cfg config.Config, sched *Scheduler) {
	if !cfg.Scheduler.Enabled {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return sched.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			sched.Stop(stopCtx)
			return nil
		},
	})
}
