package main

import (
	"github.com/smallbiznis/clearline/internal/app"
	"github.com/smallbiznis/clearline/internal/scheduler"
	"github.com/smallbiznis/clearline/internal/server"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		app.Infrastructure,
		app.Domains,

		server.Module,
		scheduler.Module,
	).Run()
}
