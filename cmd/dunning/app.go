package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dunning/internal/audit"
	"github.com/smallbiznis/dunning/internal/billingrun"
	"github.com/smallbiznis/dunning/internal/clock"
	"github.com/smallbiznis/dunning/internal/config"
	"github.com/smallbiznis/dunning/internal/customer"
	"github.com/smallbiznis/dunning/internal/invoice"
	"github.com/smallbiznis/dunning/internal/license"
	"github.com/smallbiznis/dunning/internal/notification"
	"github.com/smallbiznis/dunning/internal/observability"
	"github.com/smallbiznis/dunning/internal/scheduler"
	"github.com/smallbiznis/dunning/internal/server"
	"github.com/smallbiznis/dunning/internal/setting"
	"github.com/smallbiznis/dunning/internal/subscription"
	"github.com/smallbiznis/dunning/internal/ticket"
	"github.com/smallbiznis/dunning/internal/watchdog"
	"github.com/smallbiznis/dunning/pkg/db"
	"go.uber.org/fx"
)

// infrastructure is shared by every command that touches the database.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
	)
}

// billing wires the billing run and everything it drives.
func billing() fx.Option {
	return fx.Options(
		setting.Module,
		audit.Module,
		customer.Module,
		subscription.Module,
		invoice.Module,
		license.Module,
		ticket.Module,
		notification.Module,
		billingrun.Module,
		watchdog.Module,
		scheduler.Module,
		fx.Provide(func(s *scheduler.Scheduler) server.Trigger { return s }),
	)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
