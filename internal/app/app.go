// Package app composes the fx modules shared by every clearline binary.
package app

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clearline/internal/clock"
	"github.com/smallbiznis/clearline/internal/config"
	"github.com/smallbiznis/clearline/internal/declaration"
	"github.com/smallbiznis/clearline/internal/duty"
	"github.com/smallbiznis/clearline/internal/levy"
	"github.com/smallbiznis/clearline/internal/matching"
	"github.com/smallbiznis/clearline/internal/migration"
	"github.com/smallbiznis/clearline/internal/observability"
	"github.com/smallbiznis/clearline/internal/proration"
	"github.com/smallbiznis/clearline/internal/ratelimit"
	"github.com/smallbiznis/clearline/internal/shipment"
	"github.com/smallbiznis/clearline/internal/tariff"
	"github.com/smallbiznis/clearline/pkg/db"
	"go.uber.org/fx"
)

// Infrastructure wires config, logging, metrics, storage and ids.
var Infrastructure = fx.Options(
	config.Module,
	observability.Module,
	fx.Provide(NewSnowflakeNode),
	db.Module,
	clock.Module,
	ratelimit.Module,
	migration.Module,
)

// Domains wires the reconciliation services.
var Domains = fx.Options(
	shipment.Module,
	declaration.Module,
	tariff.Module,
	levy.Module,
	proration.Module,
	matching.Module,
	duty.Module,
)

// NewSnowflakeNode builds the id generator for the configured node.
func NewSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.NodeID, err)
	}
	return node, nil
}
