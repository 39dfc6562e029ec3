package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	CountCreatedBetween(ctx context.Context, db *gorm.DB, from, before time.Time) (int64, error)

	// MarkOverdue moves unpaid invoices due before the cutoff to overdue.
	MarkOverdue(ctx context.Context, db *gorm.DB, dueBefore, at time.Time) (int64, error)

	ListLateFeeCandidates(ctx context.Context, db *gorm.DB, dueOnOrBefore time.Time) ([]Invoice, error)
	ApplyLateFee(ctx context.Context, db *gorm.DB, id snowflake.ID, lateFee, total decimal.Decimal, at time.Time) (bool, error)

	ListOpenDueOnOrBefore(ctx context.Context, db *gorm.DB, dueOnOrBefore time.Time) ([]Invoice, error)
	ListOpenSubscriptionIDs(ctx context.Context, db *gorm.DB, dueOnOrBefore time.Time) ([]snowflake.ID, error)
	Cancel(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)

	FindLatestBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*Invoice, error)
	CountOpenBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (int64, error)

	// ListReminderCandidates returns invoices due in [dueFrom, dueBefore)
	// in the kind's statuses whose stamp for kind is unset.
	ListReminderCandidates(ctx context.Context, db *gorm.DB, kind ReminderKind, dueFrom, dueBefore time.Time) ([]Invoice, error)
	ClaimReminder(ctx context.Context, db *gorm.DB, id snowflake.ID, kind ReminderKind, at time.Time) (bool, error)
	ReleaseReminder(ctx context.Context, db *gorm.DB, id snowflake.ID, kind ReminderKind) error
}

// Calculator produces the next invoice for a subscription whose
// next_invoice_at has arrived. It returns nil when nothing is due.
type Calculator interface {
	CreateDueInvoice(ctx context.Context, subscriptionID snowflake.ID, today time.Time) (*Invoice, error)
}

var (
	ErrNotFound            = errors.New("invoice_not_found")
	ErrUnknownReminderKind = errors.New("unknown_reminder_kind")
	ErrPlanMissing         = errors.New("invoice_plan_missing")
	ErrInvalidPlanAmount   = errors.New("invoice_invalid_plan_amount")
	ErrNumberTaken         = errors.New("invoice_number_taken")
)
