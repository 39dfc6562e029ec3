package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem   ActorType = "system"
	ActorTypeOperator ActorType = "operator"
)

// Actions written by billing runs.
const (
	ActionSubscriptionSuspended   = "subscription.suspended"
	ActionSubscriptionUnsuspended = "subscription.unsuspended"
	ActionSubscriptionTerminated  = "subscription.terminated"
	ActionSubscriptionExpired     = "subscription.fixed_term_ended"
	ActionInvoiceGenerated        = "invoice.generated"
	ActionInvoicesMarkedOverdue   = "invoice.marked_overdue"
	ActionInvoiceLateFeeApplied   = "invoice.late_fee_applied"
	ActionInvoiceAutoCancelled    = "invoice.auto_cancelled"
	ActionInvoiceReminderSent     = "invoice.reminder_sent"
	ActionTicketAutoClosed        = "ticket.auto_closed"
	ActionTicketAdminReminded     = "ticket.admin_reminded"
	ActionTicketFeedbackRequested = "ticket.feedback_requested"
	ActionTicketsPurged           = "ticket.purged"
	ActionLicenseNoticeSent       = "license.notice_sent"
	ActionBillingRunTriggered     = "billing_run.triggered"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null" json:"action"`
	TargetType string            `gorm:"type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"type:text" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }
