package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clearline/internal/app"
	dutydomain "github.com/smallbiznis/clearline/internal/duty/domain"
	matchingdomain "github.com/smallbiznis/clearline/internal/matching/domain"
	prorationdomain "github.com/smallbiznis/clearline/internal/proration/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

type services struct {
	fx.In

	Proration prorationdomain.Service
	Duty      dutydomain.Service
	Matching  matchingdomain.Service
}

// withServices boots the shared modules, hands the services to fn and stops the app.
func withServices(ctx context.Context, fn func(services) error) error {
	var svc services
	fxApp := fx.New(
		app.Infrastructure,
		app.Domains,
		fx.Populate(&svc),
		fx.NopLogger,
	)
	if err := fxApp.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		_ = fxApp.Stop(context.Background())
	}()

	return fn(svc)
}

func idFlag(cmd *cobra.Command, name string) (snowflake.ID, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, fmt.Errorf("--%s is required", name)
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
