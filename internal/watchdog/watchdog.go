// Package watchdog checks the persisted billing run status and alerts
// operators when the daily run failed, hangs or stopped happening.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"time"

	billingrundomain "github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/clock"
	notificationdomain "github.com/smallbiznis/dunning/internal/notification/domain"
	obslogger "github.com/smallbiznis/dunning/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/dunning/internal/observability/metrics"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Condition string

const (
	ConditionHealthy Condition = "healthy"
	ConditionFailed  Condition = "last_run_failed"
	ConditionStuck   Condition = "run_stuck"
	ConditionStale   Condition = "no_recent_success"
)

var ErrInvalidConfig = errors.New("invalid_watchdog_config")

type Config struct {
	StuckAfter time.Duration
	StaleAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		StuckAfter: 2 * time.Hour,
		StaleAfter: 26 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.StuckAfter <= 0 {
		c.StuckAfter = defaults.StuckAfter
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = defaults.StaleAfter
	}
	return c
}

// Report is the outcome of one check. Key identifies the incident so the
// same condition is only alerted once.
type Report struct {
	Condition Condition `json:"condition"`
	Detail    string    `json:"detail,omitempty"`
	Key       string    `json:"-"`
	Alerted   bool      `json:"alerted"`
}

func (r Report) Healthy() bool {
	return r.Condition == ConditionHealthy
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Settings settingdomain.Store
	Notifier notificationdomain.Gateway
	Metrics  *obsmetrics.BillingRunMetrics `optional:"true"`
	Config   Config                        `optional:"true"`
}

type Watchdog struct {
	log      *zap.Logger
	clock    clock.Clock
	settings settingdomain.Store
	notifier notificationdomain.Gateway
	metrics  *obsmetrics.BillingRunMetrics
	cfg      Config
}

func New(p Params) (*Watchdog, error) {
	if p.Log == nil || p.Clock == nil || p.Settings == nil || p.Notifier == nil {
		return nil, ErrInvalidConfig
	}
	return &Watchdog{
		log:      p.Log.Named("watchdog"),
		clock:    p.Clock,
		settings: p.Settings,
		notifier: p.Notifier,
		metrics:  p.Metrics,
		cfg:      p.Config.withDefaults(),
	}, nil
}

// Evaluate classifies the last run as of now. A deployment that never ran
// is healthy; the scheduler will start it.
func Evaluate(last billingrundomain.LastRun, now time.Time, cfg Config) Report {
	cfg = cfg.withDefaults()
	if !last.HasRun() {
		return Report{Condition: ConditionHealthy}
	}

	switch last.Status {
	case billingrundomain.RunStatusRunning:
		if last.StartedAt != nil && now.Sub(*last.StartedAt) > cfg.StuckAfter {
			return Report{
				Condition: ConditionStuck,
				Detail:    fmt.Sprintf("billing run started at %s is still running", last.StartedAt.UTC().Format(time.RFC3339)),
				Key:       incidentKey(ConditionStuck, last.StartedAt),
			}
		}
		return Report{Condition: ConditionHealthy}
	case billingrundomain.RunStatusFailed:
		return Report{
			Condition: ConditionFailed,
			Detail:    fmt.Sprintf("billing run failed: %s", last.Error),
			Key:       incidentKey(ConditionFailed, last.StartedAt),
		}
	}

	if last.RunAt == nil || now.Sub(*last.RunAt) > cfg.StaleAfter {
		detail := "no successful billing run recorded"
		if last.RunAt != nil {
			detail = fmt.Sprintf("last successful billing run finished at %s", last.RunAt.UTC().Format(time.RFC3339))
		}
		return Report{
			Condition: ConditionStale,
			Detail:    detail,
			Key:       incidentKey(ConditionStale, last.RunAt),
		}
	}
	return Report{Condition: ConditionHealthy}
}

func incidentKey(condition Condition, at *time.Time) string {
	if at == nil {
		return string(condition) + ":never"
	}
	return string(condition) + ":" + at.UTC().Format(time.RFC3339)
}

// Check evaluates the last run and alerts once per incident. The stored
// alert key is cleared when the run is healthy again.
func (w *Watchdog) Check(ctx context.Context) (Report, error) {
	log := obslogger.WithContext(ctx, w.log)
	report := Evaluate(billingrundomain.LoadLastRun(ctx, w.settings), w.clock.Now().UTC(), w.cfg)
	previous := w.settings.String(ctx, settingdomain.KeyBillingWatchdogAlertKey)

	if report.Healthy() {
		if previous != "" {
			if err := w.settings.Set(ctx, settingdomain.KeyBillingWatchdogAlertKey, ""); err != nil {
				return report, err
			}
			log.Info("watchdog.recovered", zap.String("previous", previous))
		}
		return report, nil
	}

	if previous == report.Key {
		log.Debug("watchdog.alert.suppressed", zap.String("condition", string(report.Condition)))
		return report, nil
	}

	log.Warn("watchdog.unhealthy",
		zap.String("condition", string(report.Condition)),
		zap.String("detail", report.Detail),
	)
	w.metrics.IncWatchdogAlert(string(report.Condition))
	if err := w.notifier.SendWatchdogAlert(ctx, string(report.Condition), report.Detail); err != nil {
		log.Error("watchdog.alert.failed", zap.Error(err))
		return report, nil
	}
	report.Alerted = true
	if err := w.settings.Set(ctx, settingdomain.KeyBillingWatchdogAlertKey, report.Key); err != nil {
		return report, err
	}
	return report, nil
}
