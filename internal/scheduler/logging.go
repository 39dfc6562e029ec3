package scheduler

import (
	"context"
	"time"

	billingrundomain "github.com/smallbiznis/dunning/internal/billingrun/domain"
	obscontext "github.com/smallbiznis/dunning/internal/observability/context"
	obslogger "github.com/smallbiznis/dunning/internal/observability/logger"
	"go.uber.org/zap"
)

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logTriggerStart(ctx context.Context, today time.Time) {
	s.logger(ctx).Info("scheduler.trigger.start",
		zap.String("date", today.UTC().Format(time.DateOnly)),
		zap.Bool("distributed_lock", s.locker != nil),
	)
}

func (s *Scheduler) logTriggerFinish(ctx context.Context, result billingrundomain.RunResult) {
	fields := []zap.Field{
		zap.String("run_id", result.RunID),
		zap.String("status", string(result.Status)),
		zap.Int64("duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds()),
		zap.Int64("actions", result.Metrics.Total()),
	}
	if !result.OK() {
		s.logger(ctx).Warn("scheduler.trigger.finish", append(fields, zap.String("error", result.ErrorMessage()))...)
		return
	}
	s.logger(ctx).Info("scheduler.trigger.finish", fields...)
}

func (s *Scheduler) logContention(ctx context.Context, holder string) {
	s.logger(ctx).Info("scheduler.trigger.skipped",
		zap.String("reason", "run_in_progress"),
		zap.String("holder", holder),
	)
}
