// Package testutil opens in-memory databases and seeds entities for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqliteSchema mirrors migrations/000001_init.up.sql with sqlite column types.
// Money is TEXT so decimals round-trip without float drift.
var sqliteSchema = []string{
	`CREATE TABLE customers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		access_override_until DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE plans (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		amount TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL,
		billing_interval TEXT NOT NULL,
		interval_count INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE subscriptions (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		plan_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		current_period_start DATETIME NOT NULL,
		current_period_end DATETIME NOT NULL,
		next_invoice_at DATETIME NOT NULL,
		cancel_at_period_end BOOLEAN NOT NULL DEFAULT 0,
		auto_renew BOOLEAN NOT NULL DEFAULT 1,
		suspended_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE invoices (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		subscription_id INTEGER,
		number TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		currency TEXT NOT NULL,
		due_date DATETIME NOT NULL,
		period_start DATETIME,
		period_end DATETIME,
		subtotal TEXT NOT NULL DEFAULT '0',
		late_fee TEXT NOT NULL DEFAULT '0',
		total TEXT NOT NULL DEFAULT '0',
		overdue_at DATETIME,
		late_fee_applied_at DATETIME,
		paid_at DATETIME,
		cancelled_at DATETIME,
		unpaid_reminder_sent_at DATETIME,
		first_overdue_reminder_sent_at DATETIME,
		second_overdue_reminder_sent_at DATETIME,
		third_overdue_reminder_sent_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE licenses (
		id INTEGER PRIMARY KEY,
		subscription_id INTEGER NOT NULL,
		license_key TEXT NOT NULL UNIQUE,
		domain TEXT,
		status TEXT NOT NULL,
		expires_at DATETIME,
		suspended_at DATETIME,
		revoked_at DATETIME,
		first_notice_sent_at DATETIME,
		second_notice_sent_at DATETIME,
		expired_notice_sent_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE support_tickets (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		user_id INTEGER,
		subject TEXT NOT NULL,
		status TEXT NOT NULL,
		last_reply_at DATETIME,
		closed_at DATETIME,
		auto_closed_at DATETIME,
		admin_reminder_sent_at DATETIME,
		feedback_sent_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE settings (
		"key" TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE audit_logs (
		id INTEGER PRIMARY KEY,
		actor_type TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT,
		created_at DATETIME NOT NULL
	)`,
}

// OpenDB returns a fresh in-memory database carrying the full schema.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to file::memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range sqliteSchema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

// Node returns a snowflake node for tests.
func Node(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

// Date is midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
