package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/khaja-app/khaja/internal/clock"
	"github.com/khaja-app/khaja/internal/config"
	"github.com/khaja-app/khaja/internal/logger"
	"github.com/khaja-app/khaja/internal/migration"
	"github.com/khaja-app/khaja/internal/scheduler"
	"github.com/khaja-app/khaja/internal/server"
	"github.com/khaja-app/khaja/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		server.Module,
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
