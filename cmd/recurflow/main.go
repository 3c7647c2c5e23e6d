package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurflow/internal/clock"
	"github.com/smallbiznis/recurflow/internal/config"
	"github.com/smallbiznis/recurflow/internal/logger"
	"github.com/smallbiznis/recurflow/internal/migration"
	"github.com/smallbiznis/recurflow/internal/server"
	"github.com/smallbiznis/recurflow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

// RegisterSnowflake builds the id generator node. NODE_ID distinguishes
// replicas so ids never collide across instances.
func RegisterSnowflake() (*snowflake.Node, error) {
	nodeID := int64(1)
	if raw := os.Getenv("NODE_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		nodeID = parsed
	}
	return snowflake.NewNode(nodeID)
}
