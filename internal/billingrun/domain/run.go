// Package domain defines billing run results, stages and the persisted
// bookkeeping the scheduler and watchdog read back.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
)

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Stage names, in execution order.
const (
	StageInvoiceGeneration = "invoice_generation"
	StageOverdueMarking    = "overdue_marking"
	StageLateFees          = "late_fees"
	StageLifecycle         = "lifecycle"
	StageInvoiceReminders  = "invoice_reminders"
	StageTicketAutomation  = "ticket_automation"
	StageLicenseNotices    = "license_notices"
	StageTicketCleanup     = "ticket_cleanup"
)

// MaxErrorLength caps the persisted billing_last_error.
const MaxErrorLength = 500

var (
	ErrRunInProgress = errors.New("billing_run_in_progress")
)

// RunContext is the fixed view of time a run evaluates every stage against.
type RunContext struct {
	RunID string
	Today time.Time
	Now   time.Time
}

// Stage is one step of the daily run. Counts go into m as actions happen,
// so they are recorded even when the stage fails or panics. A returned
// error stops the run.
type Stage interface {
	Name() string
	Run(ctx context.Context, rc RunContext, m *Metrics) error
}

// Runner executes a billing run for a date.
type Runner interface {
	Run(ctx context.Context, today time.Time) RunResult
}

type RunResult struct {
	RunID      string
	Date       time.Time
	Metrics    Metrics
	Status     RunStatus
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether every stage completed.
func (r RunResult) OK() bool {
	return r.Status == RunStatusSuccess
}

// ErrorMessage returns the truncated error, empty on success.
func (r RunResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return TruncateError(r.Err.Error())
}

// TruncateError trims msg to MaxErrorLength runes.
func TruncateError(msg string) string {
	msg = strings.TrimSpace(msg)
	runes := []rune(msg)
	if len(runes) <= MaxErrorLength {
		return msg
	}
	return string(runes[:MaxErrorLength])
}

// LastRun is the persisted outcome of the most recent run.
type LastRun struct {
	Status    RunStatus  `json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	RunAt     *time.Time `json:"run_at,omitempty"`
	Error     string     `json:"error,omitempty"`
	Metrics   Metrics    `json:"metrics"`
}

// HasRun reports whether any run was ever recorded.
func (l LastRun) HasRun() bool {
	return l.Status != "" || l.StartedAt != nil
}

// SucceededOn reports whether the last success happened on the given date.
func (l LastRun) SucceededOn(day time.Time) bool {
	if l.RunAt == nil {
		return false
	}
	y1, m1, d1 := l.RunAt.UTC().Date()
	y2, m2, d2 := day.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// LoadLastRun reads the run bookkeeping from the configuration store.
// A malformed metrics value reads as zero counters.
func LoadLastRun(ctx context.Context, store settingdomain.Store) LastRun {
	last := LastRun{
		Status: RunStatus(store.String(ctx, settingdomain.KeyBillingLastStatus)),
		Error:  store.String(ctx, settingdomain.KeyBillingLastError),
	}
	if at, ok := store.Time(ctx, settingdomain.KeyBillingLastStartedAt); ok {
		last.StartedAt = &at
	}
	if at, ok := store.Time(ctx, settingdomain.KeyBillingLastRunAt); ok {
		last.RunAt = &at
	}
	if raw := store.String(ctx, settingdomain.KeyBillingLastMetrics); raw != "" {
		_ = json.Unmarshal([]byte(raw), &last.Metrics)
	}
	return last
}
