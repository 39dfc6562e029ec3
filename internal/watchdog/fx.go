package watchdog

import (
	"github.com/smallbiznis/dunning/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("watchdog",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		StuckAfter: cfg.Watchdog.StuckAfter,
		StaleAfter: cfg.Watchdog.StaleAfter,
	}
}
