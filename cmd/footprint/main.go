package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/footprint/internal/clock"
	"github.com/smallbiznis/footprint/internal/config"
	"github.com/smallbiznis/footprint/internal/emission/factor"
	"github.com/smallbiznis/footprint/internal/migration"
	"github.com/smallbiznis/footprint/internal/observability"
	"github.com/smallbiznis/footprint/internal/ratelimit"
	"github.com/smallbiznis/footprint/internal/server"
	"github.com/smallbiznis/footprint/internal/usage"
	"github.com/smallbiznis/footprint/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain
		factor.Module,
		usage.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
