package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/dunning/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, customer_id, plan_id, status, current_period_start, current_period_end,
	 next_invoice_at, cancel_at_period_end, auto_renew, suspended_at, cancelled_at, created_at, updated_at`

func (r *repo) InsertPlan(ctx context.Context, db *gorm.DB, plan *subscriptiondomain.Plan) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO plans (id, name, amount, currency, billing_interval, interval_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID,
		plan.Name,
		plan.Amount,
		plan.Currency,
		plan.Interval,
		plan.IntervalCount,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Error
}

func (r *repo) FindPlanByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Plan, error) {
	var plan subscriptiondomain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, amount, currency, billing_interval, interval_count, created_at, updated_at
		 FROM plans WHERE id = ?`,
		id,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.CustomerID,
		subscription.PlanID,
		subscription.Status,
		subscription.CurrentPeriodStart,
		subscription.CurrentPeriodEnd,
		subscription.NextInvoiceAt,
		subscription.CancelAtPeriodEnd,
		subscription.AutoRenew,
		subscription.SuspendedAt,
		subscription.CancelledAt,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`,
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, status subscriptiondomain.SubscriptionStatus) ([]subscriptiondomain.Subscription, error) {
	var items []subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE status = ? ORDER BY id ASC`,
		status,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListDueForInvoicing(ctx context.Context, db *gorm.DB, before time.Time) ([]subscriptiondomain.Subscription, error) {
	var items []subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE status = ? AND next_invoice_at < ?
		 ORDER BY next_invoice_at ASC, id ASC`,
		subscriptiondomain.SubscriptionStatusActive,
		before,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Suspend(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, suspended_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		subscriptiondomain.SubscriptionStatusSuspended,
		at,
		at,
		id,
		subscriptiondomain.SubscriptionStatusActive,
	)
	return result.RowsAffected == 1, result.Error
}

func (r *repo) Reactivate(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, suspended_at = NULL, updated_at = ?
		 WHERE id = ? AND status = ?`,
		subscriptiondomain.SubscriptionStatusActive,
		at,
		id,
		subscriptiondomain.SubscriptionStatusSuspended,
	)
	return result.RowsAffected == 1, result.Error
}

func (r *repo) Cancel(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, auto_renew = ?, cancelled_at = ?, updated_at = ?
		 WHERE id = ? AND status <> ?`,
		subscriptiondomain.SubscriptionStatusCancelled,
		false,
		at,
		at,
		id,
		subscriptiondomain.SubscriptionStatusCancelled,
	)
	return result.RowsAffected == 1, result.Error
}

func (r *repo) DeferNextInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID, nextInvoiceAt, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET next_invoice_at = ?, updated_at = ? WHERE id = ?`,
		nextInvoiceAt,
		at,
		id,
	).Error
}

// AdvancePeriod moves the subscription to the next period only if
// next_invoice_at still holds the value the caller billed against.
func (r *repo) AdvancePeriod(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedNextInvoiceAt time.Time, period subscriptiondomain.Period, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET current_period_start = ?, current_period_end = ?, next_invoice_at = ?, updated_at = ?
		 WHERE id = ? AND next_invoice_at = ?`,
		period.Start,
		period.End,
		period.NextInvoiceAt,
		at,
		id,
		expectedNextInvoiceAt,
	)
	return result.RowsAffected == 1, result.Error
}
