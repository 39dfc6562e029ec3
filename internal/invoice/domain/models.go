// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid    InvoiceStatus = "unpaid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// OpenStatuses are the statuses that still expect payment.
var OpenStatuses = []InvoiceStatus{InvoiceStatusUnpaid, InvoiceStatusOverdue}

// Invoice represents an issued invoice. Total is always Subtotal + LateFee.
type Invoice struct {
	ID                          snowflake.ID    `gorm:"primaryKey"`
	CustomerID                  snowflake.ID    `gorm:"not null;index"`
	SubscriptionID              *snowflake.ID   `gorm:"index"`
	Number                      string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	Status                      InvoiceStatus   `gorm:"type:text;not null"`
	Currency                    string          `gorm:"type:text;not null"`
	DueDate                     time.Time       `gorm:"not null"`
	PeriodStart                 *time.Time      `gorm:""`
	PeriodEnd                   *time.Time      `gorm:""`
	Subtotal                    decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	LateFee                     decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Total                       decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	OverdueAt                   *time.Time      `gorm:""`
	LateFeeAppliedAt            *time.Time      `gorm:""`
	PaidAt                      *time.Time      `gorm:""`
	CancelledAt                 *time.Time      `gorm:""`
	UnpaidReminderSentAt        *time.Time      `gorm:""`
	FirstOverdueReminderSentAt  *time.Time      `gorm:""`
	SecondOverdueReminderSentAt *time.Time      `gorm:""`
	ThirdOverdueReminderSentAt  *time.Time      `gorm:""`
	CreatedAt                   time.Time       `gorm:"not null"`
	UpdatedAt                   time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// ReminderKind identifies one of the four payment reminders.
type ReminderKind string

const (
	ReminderUnpaid        ReminderKind = "unpaid"
	ReminderFirstOverdue  ReminderKind = "first_overdue"
	ReminderSecondOverdue ReminderKind = "second_overdue"
	ReminderThirdOverdue  ReminderKind = "third_overdue"
)

// Column is the stamp that guards the reminder from being sent twice.
func (k ReminderKind) Column() string {
	switch k {
	case ReminderUnpaid:
		return "unpaid_reminder_sent_at"
	case ReminderFirstOverdue:
		return "first_overdue_reminder_sent_at"
	case ReminderSecondOverdue:
		return "second_overdue_reminder_sent_at"
	case ReminderThirdOverdue:
		return "third_overdue_reminder_sent_at"
	default:
		return ""
	}
}

// Template is the notification template key.
func (k ReminderKind) Template() string {
	switch k {
	case ReminderUnpaid:
		return "invoice_payment_reminder"
	case ReminderFirstOverdue:
		return "invoice_first_overdue"
	case ReminderSecondOverdue:
		return "invoice_second_overdue"
	case ReminderThirdOverdue:
		return "invoice_third_overdue"
	default:
		return ""
	}
}

// Statuses lists the invoice statuses the reminder applies to.
func (k ReminderKind) Statuses() []InvoiceStatus {
	if k == ReminderUnpaid {
		return []InvoiceStatus{InvoiceStatusUnpaid}
	}
	return OpenStatuses
}
