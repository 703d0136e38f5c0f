package main

import (
	"github.com/smallbiznis/clearline/internal/app"
	"github.com/smallbiznis/clearline/internal/server"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		app.Infrastructure,
		app.Domains,

		// No scheduler; run apps/scheduler separately.
		server.Module,
	).Run()
}
