package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	billingrundomain "github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/clock"
	obsmetrics "github.com/smallbiznis/dunning/internal/observability/metrics"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	"github.com/smallbiznis/dunning/internal/watchdog"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Runner   billingrundomain.Runner
	Settings settingdomain.Store

	Watchdog *watchdog.Watchdog            `optional:"true"`
	Locker   *Locker                       `optional:"true"`
	Metrics  *obsmetrics.BillingRunMetrics `optional:"true"`
	Config   Config                        `optional:"true"`
}

// Scheduler triggers the billing run at most once at a time and once per
// successful day.
type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	clock    clock.Clock
	runner   billingrundomain.Runner
	settings settingdomain.Store
	watchdog *watchdog.Watchdog
	locker   *Locker
	metrics  *obsmetrics.BillingRunMetrics

	running atomic.Bool
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Runner == nil || p.Settings == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		clock:    p.Clock,
		runner:   p.Runner,
		settings: p.Settings,
		watchdog: p.Watchdog,
		locker:   p.Locker,
		metrics:  p.Metrics,
	}, nil
}

// Trigger runs the billing cycle for today unless a run already holds the
// in-process guard or the distributed lock.
func (s *Scheduler) Trigger(ctx context.Context, today time.Time) (billingrundomain.RunResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.IncLockContention()
		s.logContention(ctx, "process")
		return billingrundomain.RunResult{}, billingrundomain.ErrRunInProgress
	}
	defer s.running.Store(false)

	token, ok, err := s.locker.TryLock(ctx)
	if err != nil {
		s.logger(ctx).Error("scheduler.lock.failed", zap.Error(err))
		return billingrundomain.RunResult{}, err
	}
	if !ok {
		s.metrics.IncLockContention()
		s.logContention(ctx, "redis")
		return billingrundomain.RunResult{}, billingrundomain.ErrRunInProgress
	}
	defer func() {
		// The run may have consumed ctx's deadline.
		if err := s.locker.Release(context.WithoutCancel(ctx), token); err != nil {
			s.logger(ctx).Warn("scheduler.lock.release_failed", zap.Error(err))
		}
	}()

	s.logTriggerStart(ctx, today)
	result := s.runner.Run(ctx, clock.StartOfDay(today))
	s.logTriggerFinish(ctx, result)
	return result, nil
}

// Due reports whether today's run should start at now.
func (s *Scheduler) Due(ctx context.Context, now time.Time) bool {
	now = now.UTC()
	if now.Hour() < s.cfg.RunHour {
		return false
	}
	last := billingrundomain.LoadLastRun(ctx, s.settings)
	return !last.SucceededOn(now)
}

// Tick performs one loop iteration: the billing run when due, then the
// watchdog check.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.clock.Now().UTC()

	var err error
	if s.Due(ctx, now) {
		result, triggerErr := s.Trigger(ctx, clock.StartOfDay(now))
		switch {
		case errors.Is(triggerErr, billingrundomain.ErrRunInProgress):
		case triggerErr != nil:
			err = errors.Join(err, triggerErr)
		case !result.OK():
			err = errors.Join(err, result.Err)
		}
	}

	if s.watchdog != nil {
		if _, checkErr := s.watchdog.Check(ctx); checkErr != nil {
			err = errors.Join(err, checkErr)
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			s.metrics.ObserveRunLoopLag(runLag)
		}
		if err := s.Tick(ctx); err != nil {
			s.log.Warn("scheduler.tick.failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
