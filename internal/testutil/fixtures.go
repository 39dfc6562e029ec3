package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/dunning/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
	licensedomain "github.com/smallbiznis/dunning/internal/license/domain"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	subscriptiondomain "github.com/smallbiznis/dunning/internal/subscription/domain"
	ticketdomain "github.com/smallbiznis/dunning/internal/ticket/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Fixtures inserts entities with every column written, so zero values
// such as auto_renew=false are not replaced by column defaults.
type Fixtures struct {
	t    *testing.T
	db   *gorm.DB
	node *snowflake.Node
	now  time.Time
	seq  int
}

func NewFixtures(t *testing.T, db *gorm.DB, now time.Time) *Fixtures {
	t.Helper()
	return &Fixtures{t: t, db: db, node: Node(t), now: now.UTC()}
}

func (f *Fixtures) create(value any) {
	f.t.Helper()
	require.NoError(f.t, f.db.Select("*").Create(value).Error)
}

func (f *Fixtures) Customer(opts ...func(*customerdomain.Customer)) *customerdomain.Customer {
	f.t.Helper()
	f.seq++
	c := &customerdomain.Customer{
		ID:        f.node.Generate(),
		Name:      fmt.Sprintf("Customer %d", f.seq),
		Email:     fmt.Sprintf("customer%d@example.com", f.seq),
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	for _, opt := range opts {
		opt(c)
	}
	f.create(c)
	return c
}

func (f *Fixtures) Plan(amount string, interval subscriptiondomain.Interval) *subscriptiondomain.Plan {
	f.t.Helper()
	p := &subscriptiondomain.Plan{
		ID:            f.node.Generate(),
		Name:          "Plan " + string(interval),
		Amount:        decimal.RequireFromString(amount),
		Currency:      "USD",
		Interval:      interval,
		IntervalCount: 1,
		CreatedAt:     f.now,
		UpdatedAt:     f.now,
	}
	f.create(p)
	return p
}

// Subscription is active, auto-renewing and due for its next invoice at periodEnd.
func (f *Fixtures) Subscription(customerID, planID snowflake.ID, periodStart, periodEnd time.Time, opts ...func(*subscriptiondomain.Subscription)) *subscriptiondomain.Subscription {
	f.t.Helper()
	s := &subscriptiondomain.Subscription{
		ID:                 f.node.Generate(),
		CustomerID:         customerID,
		PlanID:             planID,
		Status:             subscriptiondomain.SubscriptionStatusActive,
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
		NextInvoiceAt:      periodEnd,
		AutoRenew:          true,
		CreatedAt:          f.now,
		UpdatedAt:          f.now,
	}
	for _, opt := range opts {
		opt(s)
	}
	f.create(s)
	return s
}

// Invoice is unpaid with subtotal == total and no late fee.
func (f *Fixtures) Invoice(customerID snowflake.ID, subscriptionID *snowflake.ID, dueDate time.Time, subtotal string, opts ...func(*invoicedomain.Invoice)) *invoicedomain.Invoice {
	f.t.Helper()
	f.seq++
	amount := decimal.RequireFromString(subtotal)
	inv := &invoicedomain.Invoice{
		ID:             f.node.Generate(),
		CustomerID:     customerID,
		SubscriptionID: subscriptionID,
		Number:         fmt.Sprintf("TEST-%05d", f.seq),
		Status:         invoicedomain.InvoiceStatusUnpaid,
		Currency:       "USD",
		DueDate:        dueDate,
		Subtotal:       amount,
		LateFee:        decimal.Zero,
		Total:          amount,
		CreatedAt:      f.now,
		UpdatedAt:      f.now,
	}
	for _, opt := range opts {
		opt(inv)
	}
	f.create(inv)
	return inv
}

func (f *Fixtures) License(subscriptionID snowflake.ID, status licensedomain.LicenseStatus, opts ...func(*licensedomain.License)) *licensedomain.License {
	f.t.Helper()
	f.seq++
	l := &licensedomain.License{
		ID:             f.node.Generate(),
		SubscriptionID: subscriptionID,
		LicenseKey:     fmt.Sprintf("LIC-%05d", f.seq),
		Domain:         fmt.Sprintf("site%d.example.com", f.seq),
		Status:         status,
		CreatedAt:      f.now,
		UpdatedAt:      f.now,
	}
	for _, opt := range opts {
		opt(l)
	}
	f.create(l)
	return l
}

func (f *Fixtures) Ticket(customerID snowflake.ID, status ticketdomain.TicketStatus, lastReplyAt time.Time, opts ...func(*ticketdomain.SupportTicket)) *ticketdomain.SupportTicket {
	f.t.Helper()
	f.seq++
	reply := lastReplyAt
	tk := &ticketdomain.SupportTicket{
		ID:          f.node.Generate(),
		CustomerID:  customerID,
		Subject:     fmt.Sprintf("Ticket %d", f.seq),
		Status:      status,
		LastReplyAt: &reply,
		CreatedAt:   f.now,
		UpdatedAt:   f.now,
	}
	for _, opt := range opts {
		opt(tk)
	}
	f.create(tk)
	return tk
}

// Settings writes key/value pairs straight into the settings table.
func (f *Fixtures) Settings(values map[string]string) {
	f.t.Helper()
	for key, value := range values {
		f.create(&settingdomain.Setting{Key: key, Value: value, UpdatedAt: f.now})
	}
}

// MarkInvoicePaid records an external payment.
func (f *Fixtures) MarkInvoicePaid(id snowflake.ID, at time.Time) {
	f.t.Helper()
	require.NoError(f.t, f.db.Exec(
		`UPDATE invoices SET status = ?, paid_at = ?, updated_at = ? WHERE id = ?`,
		invoicedomain.InvoiceStatusPaid, at.UTC(), at.UTC(), id,
	).Error)
}

// SetTicketReply records a reply on the ticket at the given instant.
func (f *Fixtures) SetTicketReply(id snowflake.ID, status ticketdomain.TicketStatus, at time.Time) {
	f.t.Helper()
	require.NoError(f.t, f.db.Exec(
		`UPDATE support_tickets SET status = ?, last_reply_at = ?, updated_at = ? WHERE id = ?`,
		status, at.UTC(), at.UTC(), id,
	).Error)
}

// Reload reads the row with the given primary key.
func Reload[T any](t *testing.T, db *gorm.DB, id snowflake.ID) T {
	t.Helper()
	var value T
	require.NoError(t, db.First(&value, "id = ?", id).Error)
	return value
}

// Count returns the number of rows in table matching the condition.
func Count(t *testing.T, db *gorm.DB, table, where string, args ...any) int64 {
	t.Helper()
	var count int64
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	require.NoError(t, db.Raw(query, args...).Scan(&count).Error)
	return count
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
