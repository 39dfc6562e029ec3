package scheduler

import (
	"time"

	"github.com/smallbiznis/dunning/internal/config"
)

// Config controls the daily trigger loop.
type Config struct {
	// RunInterval is how often the loop wakes up to check whether today's run is due.
	RunInterval time.Duration
	// RunHour is the UTC hour from which today's run may start.
	RunHour int
	LockKey string
	LockTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 15 * time.Minute,
		RunHour:     0,
		LockKey:     "dunning:billing_run:lock",
		LockTTL:     2 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.RunHour < 0 || c.RunHour > 23 {
		c.RunHour = defaults.RunHour
	}
	if c.LockKey == "" {
		c.LockKey = defaults.LockKey
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Scheduler.RunInterval,
		RunHour:     cfg.Scheduler.RunHour,
		LockTTL:     cfg.Scheduler.LockTTL,
	}.withDefaults()
}
