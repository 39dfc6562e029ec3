package migration

import (
	"github.com/smallbiznis/dunning/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		return Run(conn, cfg.DBType, log.Named("migration"))
	}),
)
