package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/khaja-app/khaja/internal/billingcycle"
	"github.com/khaja-app/khaja/internal/catalog"
	"github.com/khaja-app/khaja/internal/clock"
	"github.com/khaja-app/khaja/internal/config"
	"github.com/khaja-app/khaja/internal/entitlement"
	"github.com/khaja-app/khaja/internal/lock"
	"github.com/khaja-app/khaja/internal/logger"
	"github.com/khaja-app/khaja/internal/migration"
	"github.com/khaja-app/khaja/internal/notification"
	"github.com/khaja-app/khaja/internal/providers/email"
	"github.com/khaja-app/khaja/internal/scheduler"
	"github.com/khaja-app/khaja/internal/subscription"
	"github.com/khaja-app/khaja/pkg/db"
	"go.uber.org/fx"
)

// Standalone expiry sweeper. Runs the same jobs as the monolith without
// serving HTTP; the redis leader lock keeps concurrent deployments from
// double-sweeping.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		catalog.Module,
		entitlement.Module,
		lock.Module,
		email.Module,
		notification.Module,
		subscription.Module,
		billingcycle.Module,

		scheduler.Module,
		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
