package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/digistore/internal/clock"
	"github.com/smallbiznis/digistore/internal/config"
	"github.com/smallbiznis/digistore/internal/migration"
	"github.com/smallbiznis/digistore/internal/observability"
	"github.com/smallbiznis/digistore/internal/server"
	"github.com/smallbiznis/digistore/pkg/db"
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

		// Schema and demo data must exist before the server starts serving.
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
