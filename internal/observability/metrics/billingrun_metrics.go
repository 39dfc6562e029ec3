package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
	RunStatusSkipped = "skipped"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonDB                   = "db"
	ReasonNotification         = "notification"
	ReasonPanic                = "panic"
	ReasonUnknown              = "unknown"
)

// ErrNotificationFailed marks errors raised by an outbound notification channel.
var ErrNotificationFailed = errors.New("notification_failed")

// ErrStagePanic marks a stage that recovered from a panic.
var ErrStagePanic = errors.New("stage_panic")

// BillingRunMetrics captures daily billing run health.
type BillingRunMetrics struct {
	runs           *prometheus.CounterVec
	runDuration    prometheus.Observer
	stageDuration  *prometheus.HistogramVec
	stageErrors    *prometheus.CounterVec
	actions        *prometheus.CounterVec
	lastRunTime    prometheus.Gauge
	lastRunSuccess prometheus.Gauge
	lockContention prometheus.Counter
	watchdogAlerts *prometheus.CounterVec
	runLoopLag     prometheus.Observer
}

var (
	billingRunMetricsOnce sync.Once
	billingRunMetrics     *BillingRunMetrics
)

// BillingRun returns the singleton billing run metrics registry.
func BillingRun() *BillingRunMetrics {
	return BillingRunWithConfig(Config{})
}

// BillingRunWithConfig returns the singleton registry using config labels.
func BillingRunWithConfig(cfg Config) *BillingRunMetrics {
	billingRunMetricsOnce.Do(func() {
		billingRunMetrics = newBillingRunMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingRunMetrics
}

// ResetBillingRunMetricsForTest resets the singleton for tests.
func ResetBillingRunMetricsForTest() {
	billingRunMetricsOnce = sync.Once{}
	billingRunMetrics = nil
}

// NewBillingRunMetricsForTest builds an instance bound to a private registry.
func NewBillingRunMetricsForTest(registerer prometheus.Registerer) *BillingRunMetrics {
	return newBillingRunMetrics(registerer, Config{ServiceName: "dunning", Environment: "test"})
}

func newBillingRunMetrics(registerer prometheus.Registerer, cfg Config) *BillingRunMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "dunning"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "dunning_billing_runs_total",
		Help:        "Daily billing runs by outcome.",
		ConstLabels: constLabels,
	}, []string{"status"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "dunning_billing_run_duration_seconds",
		Help:        "Wall time of a full billing run.",
		Buckets:     []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		ConstLabels: constLabels,
	})
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "dunning_billing_stage_duration_seconds",
		Help:        "Wall time of each billing run stage.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"stage"})
	stageErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "dunning_billing_stage_errors_total",
		Help:        "Billing stage failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"stage", "reason"})
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "dunning_billing_actions_total",
		Help:        "Entity actions taken by billing runs.",
		ConstLabels: constLabels,
	}, []string{"action"})
	lastRunTime := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "dunning_billing_last_run_timestamp_seconds",
		Help:        "Unix time of the last finished billing run.",
		ConstLabels: constLabels,
	})
	lastRunSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "dunning_billing_last_run_success",
		Help:        "1 when the last finished billing run succeeded.",
		ConstLabels: constLabels,
	})
	lockContention := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "dunning_billing_run_lock_contention_total",
		Help:        "Billing runs skipped because another run holds the lock.",
		ConstLabels: constLabels,
	})
	watchdogAlerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "dunning_billing_watchdog_alerts_total",
		Help:        "Watchdog alerts raised by condition.",
		ConstLabels: constLabels,
	}, []string{"condition"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "dunning_scheduler_runloop_lag_seconds",
		Help:        "Scheduler tick lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		runs,
		runDuration,
		stageDuration,
		stageErrors,
		actions,
		lastRunTime,
		lastRunSuccess,
		lockContention,
		watchdogAlerts,
		runLoopLag,
	)

	return &BillingRunMetrics{
		runs:           runs,
		runDuration:    runDuration,
		stageDuration:  stageDuration,
		stageErrors:    stageErrors,
		actions:        actions,
		lastRunTime:    lastRunTime,
		lastRunSuccess: lastRunSuccess,
		lockContention: lockContention,
		watchdogAlerts: watchdogAlerts,
		runLoopLag:     runLoopLag,
	}
}

// ObserveRun records the outcome of a finished run.
func (m *BillingRunMetrics) ObserveRun(status string, duration time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	if status == RunStatusSkipped {
		return
	}
	m.runDuration.Observe(duration.Seconds())
	m.lastRunTime.Set(float64(finishedAt.Unix()))
	if status == RunStatusSuccess {
		m.lastRunSuccess.Set(1)
	} else {
		m.lastRunSuccess.Set(0)
	}
}

// ObserveStage records stage latency.
func (m *BillingRunMetrics) ObserveStage(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// IncStageError increments the stage error counter with classification.
func (m *BillingRunMetrics) IncStageError(stage string, err error) {
	if m == nil || err == nil {
		return
	}
	m.stageErrors.WithLabelValues(stage, ClassifyReason(err)).Inc()
}

// AddActions adds count to the action counter.
func (m *BillingRunMetrics) AddActions(action string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.actions.WithLabelValues(action).Add(float64(count))
}

// IncLockContention counts a run skipped on a held lock.
func (m *BillingRunMetrics) IncLockContention() {
	if m == nil {
		return
	}
	m.lockContention.Inc()
}

// IncWatchdogAlert counts a watchdog alert for the condition.
func (m *BillingRunMetrics) IncWatchdogAlert(condition string) {
	if m == nil {
		return
	}
	m.watchdogAlerts.WithLabelValues(condition).Inc()
}

// ObserveRunLoopLag records lag between the scheduled tick and the actual run.
func (m *BillingRunMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.runLoopLag.Observe(duration.Seconds())
}

// ClassifyReason maps errors to low-cardinality reasons.
func ClassifyReason(err error) string {
	switch {
	case err == nil:
		return ReasonUnknown
	case errors.Is(err, ErrStagePanic):
		return ReasonPanic
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return ReasonDeadlineExceeded
	case errors.Is(err, ErrNotificationFailed):
		return ReasonNotification
	case hasPGCode(err, "55P03"):
		return ReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return ReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505"):
		return ReasonUniqueViolation
	case isDBError(err):
		return ReasonDB
	default:
		return ReasonUnknown
	}
}

// IsRetryable reports whether a failed run is worth retrying on the next tick.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	return isDBError(err)
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
