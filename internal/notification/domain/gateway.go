// Package domain declares the outbound notification contract used by billing runs.
package domain

import (
	"context"
	"errors"
	"time"

	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
	licensedomain "github.com/smallbiznis/dunning/internal/license/domain"
	ticketdomain "github.com/smallbiznis/dunning/internal/ticket/domain"
)

// Template keys.
const (
	TemplateInvoiceCreated      = "invoice_created"
	TemplateTicketAutoClosed    = "ticket_auto_closed"
	TemplateTicketAdminReminder = "ticket_admin_reminder"
	TemplateTicketFeedback      = "ticket_feedback"
	TemplateRunSummary          = "billing_run_summary"
	TemplateWatchdogAlert       = "billing_watchdog_alert"
)

// RunSummary describes a finished billing run.
type RunSummary struct {
	RunID      string
	Date       time.Time
	Status     string
	Metrics    map[string]int64
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
}

// Gateway delivers notifications. Every method may fail; callers log and move on.
//
//go:generate mockgen -destination=../mock/gateway_mock.go -package=mock . Gateway
type Gateway interface {
	SendInvoiceCreated(ctx context.Context, invoice invoicedomain.Invoice) error
	SendInvoiceReminder(ctx context.Context, invoice invoicedomain.Invoice, templateKey string) error
	SendTicketAutoClose(ctx context.Context, ticket ticketdomain.SupportTicket) error
	SendTicketReminder(ctx context.Context, ticket ticketdomain.SupportTicket) error
	SendTicketFeedback(ctx context.Context, ticket ticketdomain.SupportTicket) error
	SendLicenseExpiryNotice(ctx context.Context, license licensedomain.License, templateKey string) error
	SendRunSummary(ctx context.Context, summary RunSummary) error
	SendWatchdogAlert(ctx context.Context, condition, detail string) error
}

var (
	ErrNoAdminRecipients = errors.New("notification_no_admin_recipients")
	ErrRecipientNotFound = errors.New("notification_recipient_not_found")
)
