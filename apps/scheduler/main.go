package main

import (
	"github.com/smallbiznis/clearline/internal/app"
	"github.com/smallbiznis/clearline/internal/scheduler"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		app.Infrastructure,
		app.Domains,

		// No server module!
		scheduler.Module,
	).Run()
}
