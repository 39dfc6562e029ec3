// Package domain defines the persisted key/value configuration store.
package domain

import "time"

// Setting is a single persisted tunable.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key;type:varchar(191)"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (Setting) TableName() string { return "settings" }

// Late fee.
const (
	KeyLateFeeDays   = "late_fee_days"
	KeyLateFeeAmount = "late_fee_amount"
	KeyLateFeeType   = "late_fee_type"
)

// Lifecycle escalation.
const (
	KeyEnableAutoCancellation = "enable_auto_cancellation"
	KeyAutoCancellationDays   = "auto_cancellation_days"
	KeyEnableSuspension       = "enable_suspension"
	KeySuspendDays            = "suspend_days"
	KeyEnableTermination      = "enable_termination"
	KeyTerminationDays        = "termination_days"
	KeyEnableUnsuspension     = "enable_unsuspension"
)

// Invoice reminders.
const (
	KeyPaymentReminderEmails     = "payment_reminder_emails"
	KeyInvoiceUnpaidReminderDays = "invoice_unpaid_reminder_days"
	KeyFirstOverdueReminderDays  = "first_overdue_reminder_days"
	KeySecondOverdueReminderDays = "second_overdue_reminder_days"
	KeyThirdOverdueReminderDays  = "third_overdue_reminder_days"
	KeyInvoicePaymentTermsDays   = "invoice_payment_terms_days"
)

// Tickets and licenses.
const (
	KeyTicketAutoCloseDays           = "ticket_auto_close_days"
	KeyTicketAdminReminderDays       = "ticket_admin_reminder_days"
	KeyTicketFeedbackDays            = "ticket_feedback_days"
	KeyTicketCleanupDays             = "ticket_cleanup_days"
	KeyLicenseExpiryFirstNoticeDays  = "license_expiry_first_notice_days"
	KeyLicenseExpirySecondNoticeDays = "license_expiry_second_notice_days"
)

// Run bookkeeping written by the orchestrator and read by the watchdog.
const (
	KeyBillingLastStartedAt    = "billing_last_started_at"
	KeyBillingLastRunAt        = "billing_last_run_at"
	KeyBillingLastStatus       = "billing_last_status"
	KeyBillingLastError        = "billing_last_error"
	KeyBillingLastMetrics      = "billing_last_metrics"
	KeyBillingWatchdogAlertKey = "billing_watchdog_alert_key"
)

// Defaults applies when neither the database nor settings.yml carries a key.
// Zero day counts leave the matching automation disabled.
var Defaults = map[string]string{
	KeyLateFeeDays:                   "0",
	KeyLateFeeAmount:                 "0",
	KeyLateFeeType:                   "fixed",
	KeyEnableAutoCancellation:        "false",
	KeyAutoCancellationDays:          "0",
	KeyEnableSuspension:              "false",
	KeySuspendDays:                   "0",
	KeyEnableTermination:             "false",
	KeyTerminationDays:               "0",
	KeyEnableUnsuspension:            "false",
	KeyPaymentReminderEmails:         "true",
	KeyInvoiceUnpaidReminderDays:     "0",
	KeyFirstOverdueReminderDays:      "0",
	KeySecondOverdueReminderDays:     "0",
	KeyThirdOverdueReminderDays:      "0",
	KeyInvoicePaymentTermsDays:       "7",
	KeyTicketAutoCloseDays:           "0",
	KeyTicketAdminReminderDays:       "0",
	KeyTicketFeedbackDays:            "0",
	KeyTicketCleanupDays:             "0",
	KeyLicenseExpiryFirstNoticeDays:  "0",
	KeyLicenseExpirySecondNoticeDays: "0",
}
