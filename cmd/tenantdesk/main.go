package main

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenantdesk/internal/clock"
	"github.com/smallbiznis/tenantdesk/internal/config"
	"github.com/smallbiznis/tenantdesk/internal/lock"
	"github.com/smallbiznis/tenantdesk/internal/migration"
	"github.com/smallbiznis/tenantdesk/internal/observability"
	"github.com/smallbiznis/tenantdesk/internal/plan"
	"github.com/smallbiznis/tenantdesk/internal/proration"
	"github.com/smallbiznis/tenantdesk/internal/renewal"
	"github.com/smallbiznis/tenantdesk/internal/server"
	"github.com/smallbiznis/tenantdesk/internal/tenant"
	"github.com/smallbiznis/tenantdesk/internal/treasury"
	"github.com/smallbiznis/tenantdesk/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,

		// Functional Domains
		plan.Module,
		proration.Module,
		tenant.Module,
		treasury.Module,
		renewal.Module,
		migration.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.SnowflakeNode, err)
	}
	return node, nil
}
