package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boostd/internal/authorization"
	"github.com/smallbiznis/boostd/internal/boost"
	"github.com/smallbiznis/boostd/internal/cache"
	"github.com/smallbiznis/boostd/internal/catalog"
	"github.com/smallbiznis/boostd/internal/clock"
	"github.com/smallbiznis/boostd/internal/config"
	"github.com/smallbiznis/boostd/internal/ledger"
	"github.com/smallbiznis/boostd/internal/lock"
	"github.com/smallbiznis/boostd/internal/migration"
	"github.com/smallbiznis/boostd/internal/notification"
	"github.com/smallbiznis/boostd/internal/observability"
	"github.com/smallbiznis/boostd/internal/payment"
	"github.com/smallbiznis/boostd/internal/scheduler"
	"github.com/smallbiznis/boostd/internal/server"
	"github.com/smallbiznis/boostd/pkg/db"
	"go.uber.org/fx"
)

// The API process serves HTTP only. Sweeps still run when an external cron
// hits the trigger endpoint, but the ticker lives in apps/scheduler.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,

		authorization.Module,
		catalog.Module,
		ledger.Module,
		payment.Module,
		notification.Module,
		boost.Module,
		cache.Module,
		scheduler.Module,
		server.Module,

		fx.Decorate(func(cfg config.Config) config.Config {
			cfg.Scheduler.Enabled = false
			return cfg
		}),
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
