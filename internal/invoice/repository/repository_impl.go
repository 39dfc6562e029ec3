package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

const invoiceColumns = `id, customer_id, subscription_id, number, status, currency, due_date, period_start, period_end,
	 subtotal, late_fee, total, overdue_at, late_fee_applied_at, paid_at, cancelled_at,
	 unpaid_reminder_sent_at, first_overdue_reminder_sent_at, second_overdue_reminder_sent_at,
	 third_overdue_reminder_sent_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (`+invoiceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.CustomerID,
		invoice.SubscriptionID,
		invoice.Number,
		invoice.Status,
		invoice.Currency,
		invoice.DueDate,
		invoice.PeriodStart,
		invoice.PeriodEnd,
		invoice.Subtotal,
		invoice.LateFee,
		invoice.Total,
		invoice.OverdueAt,
		invoice.LateFeeAppliedAt,
		invoice.PaidAt,
		invoice.CancelledAt,
		invoice.UnpaidReminderSentAt,
		invoice.FirstOverdueReminderSentAt,
		invoice.SecondOverdueReminderSentAt,
		invoice.ThirdOverdueReminderSentAt,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) CountCreatedBetween(ctx context.Context, db *gorm.DB, from, before time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices WHERE created_at >= ? AND created_at < ?`,
		from,
		before,
	).Scan(&count).Error
	return count, err
}

// overdue_at is only written when empty so a later run never moves it.
func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, dueBefore, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, overdue_at = COALESCE(overdue_at, ?), updated_at = ?
		 WHERE status = ? AND due_date < ?`,
		invoicedomain.InvoiceStatusOverdue,
		at,
		at,
		invoicedomain.InvoiceStatusUnpaid,
		dueBefore,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ListLateFeeCandidates(ctx context.Context, db *gorm.DB, dueOnOrBefore time.Time) ([]invoicedomain.Invoice, error) {
	var items []invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE status IN ? AND late_fee_applied_at IS NULL AND due_date <= ?
		 ORDER BY due_date ASC, id ASC`,
		invoicedomain.OpenStatuses,
		dueOnOrBefore,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ApplyLateFee stamps late_fee_applied_at; the IS NULL guard makes the fee
// one-time for the invoice's whole lifetime.
func (r *repo) ApplyLateFee(ctx context.Context, db *gorm.DB, id snowflake.ID, lateFee, total decimal.Decimal, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices SET late_fee = ?, total = ?, late_fee_applied_at = ?, updated_at = ?
		 WHERE id = ? AND late_fee_applied_at IS NULL AND status IN ?`,
		lateFee,
		total,
		at,
		at,
		id,
		invoicedomain.OpenStatuses,
	)
	return result.RowsAffected == 1, result.Error
}

func (r *repo) ListOpenDueOnOrBefore(ctx context.Context, db *gorm.DB, dueOnOrBefore time.Time) ([]invoicedomain.Invoice, error) {
	var items []invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE status IN ? AND due_date <= ?
		 ORDER BY due_date ASC, id ASC`,
		invoicedomain.OpenStatuses,
		dueOnOrBefore,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListOpenSubscriptionIDs(ctx context.Context, db *gorm.DB, dueOnOrBefore time.Time) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT subscription_id FROM invoices
		 WHERE subscription_id IS NOT NULL AND status IN ? AND due_date <= ?
		 ORDER BY subscription_id ASC`,
		invoicedomain.OpenStatuses,
		dueOnOrBefore,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) Cancel(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, cancelled_at = ?, updated_at = ?
		 WHERE id = ? AND status IN ?`,
		invoicedomain.InvoiceStatusCancelled,
		at,
		at,
		id,
		invoicedomain.OpenStatuses,
	)
	return result.RowsAffected == 1, result.Error
}

func (r *repo) FindLatestBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE subscription_id = ?
		 ORDER BY due_date DESC, id DESC
		 LIMIT 1`,
		subscriptionID,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) CountOpenBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices WHERE subscription_id = ? AND status IN ?`,
		subscriptionID,
		invoicedomain.OpenStatuses,
	).Scan(&count).Error
	return count, err
}

func (r *repo) ListReminderCandidates(ctx context.Context, db *gorm.DB, kind invoicedomain.ReminderKind, dueFrom, dueBefore time.Time) ([]invoicedomain.Invoice, error) {
	column := kind.Column()
	if column == "" {
		return nil, invoicedomain.ErrUnknownReminderKind
	}
	var items []invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE status IN ? AND `+column+` IS NULL AND due_date >= ? AND due_date < ?
		 ORDER BY id ASC`,
		kind.Statuses(),
		dueFrom,
		dueBefore,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ClaimReminder(ctx context.Context, db *gorm.DB, id snowflake.ID, kind invoicedomain.ReminderKind, at time.Time) (bool, error) {
	column := kind.Column()
	if column == "" {
		return false, invoicedomain.ErrUnknownReminderKind
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices SET `+column+` = ?, updated_at = ? WHERE id = ? AND `+column+` IS NULL`,
		at,
		at,
		id,
	)
	return result.RowsAffected == 1, result.Error
}

func (r *repo) ReleaseReminder(ctx context.Context, db *gorm.DB, id snowflake.ID, kind invoicedomain.ReminderKind) error {
	column := kind.Column()
	if column == "" {
		return invoicedomain.ErrUnknownReminderKind
	}
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET `+column+` = NULL WHERE id = ?`,
		id,
	).Error
}
