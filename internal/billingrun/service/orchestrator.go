package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	auditdomain "github.com/smallbiznis/dunning/internal/audit/domain"
	"github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/clock"
	customerdomain "github.com/smallbiznis/dunning/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
	licensedomain "github.com/smallbiznis/dunning/internal/license/domain"
	notificationdomain "github.com/smallbiznis/dunning/internal/notification/domain"
	obscontext "github.com/smallbiznis/dunning/internal/observability/context"
	obslogger "github.com/smallbiznis/dunning/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/dunning/internal/observability/metrics"
	"github.com/smallbiznis/dunning/internal/observability/tracing"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	subscriptiondomain "github.com/smallbiznis/dunning/internal/subscription/domain"
	ticketdomain "github.com/smallbiznis/dunning/internal/ticket/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const actorID = "billingrun"

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	Clock            clock.Clock
	Settings         settingdomain.Store
	Audit            auditdomain.Service
	Notifier         notificationdomain.Gateway
	Calculator       invoicedomain.Calculator
	SubscriptionRepo subscriptiondomain.Repository
	InvoiceRepo      invoicedomain.Repository
	LicenseRepo      licensedomain.Repository
	TicketRepo       ticketdomain.Repository
	CustomerRepo     customerdomain.Repository
	Metrics          *obsmetrics.BillingRunMetrics `optional:"true"`
}

// Orchestrator runs the daily stages in order and persists the outcome.
type Orchestrator struct {
	log      *zap.Logger
	clock    clock.Clock
	settings settingdomain.Store
	notifier notificationdomain.Gateway
	metrics  *obsmetrics.BillingRunMetrics
	stages   []domain.Stage
}

func NewOrchestrator(p Params) *Orchestrator {
	log := p.Log.Named("billingrun").With(zap.String("component", "billingrun"))
	base := stageBase{
		db:       p.DB,
		log:      log,
		settings: p.Settings,
		audit:    p.Audit,
		notifier: p.Notifier,
	}

	return &Orchestrator{
		log:      log,
		clock:    p.Clock,
		settings: p.Settings,
		notifier: p.Notifier,
		metrics:  p.Metrics,
		stages: []domain.Stage{
			&invoiceGeneration{stageBase: base, subscriptions: p.SubscriptionRepo, licenses: p.LicenseRepo, calculator: p.Calculator},
			&overdueMarking{stageBase: base, invoices: p.InvoiceRepo},
			&lateFees{stageBase: base, invoices: p.InvoiceRepo},
			&lifecycle{stageBase: base, subscriptions: p.SubscriptionRepo, invoices: p.InvoiceRepo, licenses: p.LicenseRepo, customers: p.CustomerRepo},
			&invoiceReminders{stageBase: base, invoices: p.InvoiceRepo},
			&ticketAutomation{stageBase: base, tickets: p.TicketRepo},
			&licenseNotices{stageBase: base, licenses: p.LicenseRepo},
			&ticketCleanup{stageBase: base, tickets: p.TicketRepo},
		},
	}
}

// Stages returns the stage names in execution order.
func (o *Orchestrator) Stages() []string {
	return lo.Map(o.stages, func(stage domain.Stage, _ int) string { return stage.Name() })
}

// LastRun reads the persisted outcome of the most recent run.
func (o *Orchestrator) LastRun(ctx context.Context) domain.LastRun {
	return domain.LoadLastRun(ctx, o.settings)
}

// Run executes every stage for today. It never returns an error: a failed
// or panicking stage ends the run and is reported through the result and
// the persisted status. The summary notification goes out for every run
// except a failure identical to the previous one.
func (o *Orchestrator) Run(ctx context.Context, today time.Time) domain.RunResult {
	today = clock.StartOfDay(today)
	result := domain.RunResult{
		RunID:     ulid.Make().String(),
		Date:      today,
		Status:    domain.RunStatusRunning,
		StartedAt: o.clock.Now().UTC(),
	}
	started := time.Now()

	ctx = obscontext.WithRunID(ctx, result.RunID)
	ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), actorID)
	ctx, span := tracing.StartSpan(ctx, "billingrun.run",
		attribute.String("billing.run_id", result.RunID),
		attribute.String("billing.date", today.Format("2006-01-02")),
	)
	defer span.End()

	log := o.logger(ctx)
	log.Info("billingrun.start", zap.String("date", today.Format("2006-01-02")))
	previous := o.LastRun(ctx)
	o.persist(ctx, map[string]string{
		settingdomain.KeyBillingLastStartedAt: formatTime(result.StartedAt),
		settingdomain.KeyBillingLastStatus:    string(domain.RunStatusRunning),
		settingdomain.KeyBillingLastError:     "",
	})

	rc := domain.RunContext{RunID: result.RunID, Today: today, Now: result.StartedAt}
	for _, stage := range o.stages {
		metrics, err := o.runStage(ctx, stage, rc)
		result.Metrics.Merge(metrics)
		if err != nil {
			result.Err = fmt.Errorf("%s: %w", stage.Name(), err)
			break
		}
	}

	result.FinishedAt = o.clock.Now().UTC()
	values := map[string]string{
		settingdomain.KeyBillingLastMetrics: encodeMetrics(result.Metrics),
	}
	if result.Err != nil {
		result.Status = domain.RunStatusFailed
		values[settingdomain.KeyBillingLastStatus] = string(domain.RunStatusFailed)
		values[settingdomain.KeyBillingLastError] = result.ErrorMessage()
		span.RecordError(tracing.SafeError(result.Err))
		span.SetStatus(codes.Error, "billing run failed")
	} else {
		result.Status = domain.RunStatusSuccess
		values[settingdomain.KeyBillingLastStatus] = string(domain.RunStatusSuccess)
		values[settingdomain.KeyBillingLastRunAt] = formatTime(result.FinishedAt)
		values[settingdomain.KeyBillingLastError] = ""
	}
	o.persist(ctx, values)
	o.metrics.ObserveRun(string(result.Status), time.Since(started), result.FinishedAt)

	fields := []zap.Field{
		zap.String("status", string(result.Status)),
		zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		zap.Any("metrics", nonZero(result.Metrics)),
	}
	if result.Err != nil {
		log.Error("billingrun.finish", append(fields, zap.Error(result.Err))...)
	} else {
		log.Info("billingrun.finish", fields...)
	}

	if repeatsFailure(previous, result) {
		log.Info("billingrun.summary.suppressed", zap.String("reason", "repeated_failure"))
	} else {
		o.sendSummary(ctx, result)
	}
	return result
}

// repeatsFailure reports whether result failed with the error the previous
// run already recorded.
func repeatsFailure(previous domain.LastRun, result domain.RunResult) bool {
	return result.Status == domain.RunStatusFailed &&
		previous.Status == domain.RunStatusFailed &&
		previous.Error == result.ErrorMessage()
}

func (o *Orchestrator) runStage(ctx context.Context, stage domain.Stage, rc domain.RunContext) (metrics domain.Metrics, err error) {
	name := stage.Name()
	ctx = obscontext.WithStage(ctx, name)
	ctx, span := tracing.StartSpan(ctx, "billingrun.stage",
		attribute.String("billing.run_id", rc.RunID),
		attribute.String("billing.stage", name),
	)
	log := o.logger(ctx).With(zap.String("stage", name))
	started := time.Now()
	log.Info("billingrun.stage.start")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", obsmetrics.ErrStagePanic, r)
			log.Error("billingrun.stage.panic", zap.Any("panic", r), zap.Stack("stack"))
		}

		elapsed := time.Since(started)
		o.metrics.ObserveStage(name, elapsed)
		for action, count := range nonZero(metrics) {
			o.metrics.AddActions(action, int(count))
		}
		fields := []zap.Field{
			zap.Int64("duration_ms", elapsed.Milliseconds()),
			zap.Any("metrics", nonZero(metrics)),
		}
		if err != nil {
			o.metrics.IncStageError(name, err)
			span.RecordError(tracing.SafeError(err))
			span.SetStatus(codes.Error, "stage failed")
			log.Error("billingrun.stage.finish", append(fields,
				zap.String("error_type", obsmetrics.ClassifyReason(err)),
				zap.Error(err),
			)...)
		} else {
			log.Info("billingrun.stage.finish", fields...)
		}
		span.End()
	}()

	err = stage.Run(ctx, rc, &metrics)
	return metrics, err
}

func (o *Orchestrator) persist(ctx context.Context, values map[string]string) {
	if err := o.settings.SetMany(ctx, values); err != nil {
		o.logger(ctx).Error("billingrun.bookkeeping.failed",
			zap.Strings("keys", lo.Keys(values)),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) sendSummary(ctx context.Context, result domain.RunResult) {
	summary := notificationdomain.RunSummary{
		RunID:      result.RunID,
		Date:       result.Date,
		Status:     string(result.Status),
		Metrics:    result.Metrics.Map(),
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Error:      result.ErrorMessage(),
	}
	if err := o.notifier.SendRunSummary(ctx, summary); err != nil {
		o.logger(ctx).Warn("billingrun.notification.failed",
			zap.String("template", notificationdomain.TemplateRunSummary),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, o.log)
}

func nonZero(m domain.Metrics) map[string]int64 {
	return lo.PickBy(m.Map(), func(_ string, v int64) bool { return v > 0 })
}

func encodeMetrics(m domain.Metrics) string {
	raw, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
