package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/flasti/ledger/internal/clock"
	"github.com/flasti/ledger/internal/config"
	"github.com/flasti/ledger/internal/logger"
	"github.com/flasti/ledger/internal/migration"
	"github.com/flasti/ledger/internal/observability"
	"github.com/flasti/ledger/internal/server"
	"github.com/flasti/ledger/pkg/db"
	"github.com/flasti/ledger/pkg/redis"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		redis.Module,
		clock.Module,
		migration.Module,
		server.Module,
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
