package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boostd/internal/authorization"
	"github.com/smallbiznis/boostd/internal/boost"
	"github.com/smallbiznis/boostd/internal/catalog"
	"github.com/smallbiznis/boostd/internal/clock"
	"github.com/smallbiznis/boostd/internal/config"
	"github.com/smallbiznis/boostd/internal/ledger"
	"github.com/smallbiznis/boostd/internal/lock"
	"github.com/smallbiznis/boostd/internal/notification"
	"github.com/smallbiznis/boostd/internal/observability"
	"github.com/smallbiznis/boostd/internal/payment"
	"github.com/smallbiznis/boostd/internal/scheduler"
	"github.com/smallbiznis/boostd/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,

		// Domain services required by scheduler
		authorization.Module,
		catalog.Module,
		ledger.Module,
		payment.Module,
		notification.Module,
		boost.Module,
		scheduler.Module,

		// No server module! The ticker always runs here.
		fx.Decorate(func(cfg config.Config) config.Config {
			cfg.Scheduler.Enabled = true
			return cfg
		}),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
