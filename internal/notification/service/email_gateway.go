package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dunning/internal/config"
	customerdomain "github.com/smallbiznis/dunning/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
	licensedomain "github.com/smallbiznis/dunning/internal/license/domain"
	notificationdomain "github.com/smallbiznis/dunning/internal/notification/domain"
	"github.com/smallbiznis/dunning/internal/observability/metrics"
	"github.com/smallbiznis/dunning/internal/providers/email"
	subscriptiondomain "github.com/smallbiznis/dunning/internal/subscription/domain"
	ticketdomain "github.com/smallbiznis/dunning/internal/ticket/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	channelEmail = "email"
	dateLayout   = "2006-01-02"
)

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	Config           config.Config
	Email            email.Provider
	CustomerRepo     customerdomain.Repository
	SubscriptionRepo subscriptiondomain.Repository
	Metrics          *metrics.Metrics `optional:"true"`
}

// EmailGateway resolves recipients from the customer records and sends
// templated mail through the configured email provider.
type EmailGateway struct {
	db               *gorm.DB
	log              *zap.Logger
	admins           []string
	email            email.Provider
	customerRepo     customerdomain.Repository
	subscriptionRepo subscriptiondomain.Repository
	metrics          *metrics.Metrics
}

func NewEmailGateway(p Params) notificationdomain.Gateway {
	return &EmailGateway{
		db:               p.DB,
		log:              p.Log.Named("notification.email"),
		admins:           p.Config.AdminEmails,
		email:            p.Email,
		customerRepo:     p.CustomerRepo,
		subscriptionRepo: p.SubscriptionRepo,
		metrics:          p.Metrics,
	}
}

func (g *EmailGateway) SendInvoiceCreated(ctx context.Context, invoice invoicedomain.Invoice) error {
	customer, err := g.customer(ctx, invoice.CustomerID)
	if err != nil {
		return err
	}
	return g.toAdmins(ctx, notificationdomain.TemplateInvoiceCreated, invoiceData(invoice, customer))
}

func (g *EmailGateway) SendInvoiceReminder(ctx context.Context, invoice invoicedomain.Invoice, templateKey string) error {
	customer, err := g.customer(ctx, invoice.CustomerID)
	if err != nil {
		return err
	}
	return g.send(ctx, []string{customer.Email}, templateKey, invoiceData(invoice, customer))
}

func (g *EmailGateway) SendTicketAutoClose(ctx context.Context, ticket ticketdomain.SupportTicket) error {
	customer, err := g.customer(ctx, ticket.CustomerID)
	if err != nil {
		return err
	}
	return g.send(ctx, []string{customer.Email}, notificationdomain.TemplateTicketAutoClosed, ticketData(ticket, customer))
}

func (g *EmailGateway) SendTicketReminder(ctx context.Context, ticket ticketdomain.SupportTicket) error {
	customer, err := g.customer(ctx, ticket.CustomerID)
	if err != nil {
		return err
	}
	return g.toAdmins(ctx, notificationdomain.TemplateTicketAdminReminder, ticketData(ticket, customer))
}

func (g *EmailGateway) SendTicketFeedback(ctx context.Context, ticket ticketdomain.SupportTicket) error {
	customer, err := g.customer(ctx, ticket.CustomerID)
	if err != nil {
		return err
	}
	return g.send(ctx, []string{customer.Email}, notificationdomain.TemplateTicketFeedback, ticketData(ticket, customer))
}

func (g *EmailGateway) SendLicenseExpiryNotice(ctx context.Context, license licensedomain.License, templateKey string) error {
	sub, err := g.subscriptionRepo.FindByID(ctx, g.db, license.SubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("license %s: %w", license.ID, notificationdomain.ErrRecipientNotFound)
	}
	customer, err := g.customer(ctx, sub.CustomerID)
	if err != nil {
		return err
	}

	data := map[string]any{
		"customer_name": customer.Name,
		"license_key":   license.LicenseKey,
		"domain":        license.Domain,
		"expires_at":    formatDate(license.ExpiresAt),
	}
	return g.send(ctx, []string{customer.Email}, templateKey, data)
}

type metricRow struct {
	Name  string
	Value int64
}

func (g *EmailGateway) SendRunSummary(ctx context.Context, summary notificationdomain.RunSummary) error {
	names := make([]string, 0, len(summary.Metrics))
	for name := range summary.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([]metricRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, metricRow{Name: name, Value: summary.Metrics[name]})
	}

	return g.toAdmins(ctx, notificationdomain.TemplateRunSummary, map[string]any{
		"run_id":      summary.RunID,
		"date":        summary.Date.Format(dateLayout),
		"status":      summary.Status,
		"started_at":  summary.StartedAt.UTC().Format(time.RFC3339),
		"finished_at": summary.FinishedAt.UTC().Format(time.RFC3339),
		"error":       summary.Error,
		"metrics":     rows,
	})
}

func (g *EmailGateway) SendWatchdogAlert(ctx context.Context, condition, detail string) error {
	return g.toAdmins(ctx, notificationdomain.TemplateWatchdogAlert, map[string]any{
		"condition": condition,
		"detail":    detail,
	})
}

func (g *EmailGateway) customer(ctx context.Context, id snowflake.ID) (*customerdomain.Customer, error) {
	customer, err := g.customerRepo.FindByID(ctx, g.db, id)
	if err != nil {
		return nil, err
	}
	if customer == nil || strings.TrimSpace(customer.Email) == "" {
		return nil, fmt.Errorf("customer %s: %w", id, notificationdomain.ErrRecipientNotFound)
	}
	return customer, nil
}

func (g *EmailGateway) toAdmins(ctx context.Context, templateKey string, data map[string]any) error {
	if len(g.admins) == 0 {
		g.metrics.RecordNotification(ctx, channelEmail, templateKey, notificationdomain.ErrNoAdminRecipients)
		return notificationdomain.ErrNoAdminRecipients
	}
	return g.send(ctx, g.admins, templateKey, data)
}

func (g *EmailGateway) send(ctx context.Context, to []string, templateKey string, data map[string]any) error {
	err := g.email.SendTemplate(ctx, to, templateKey, data)
	g.metrics.RecordNotification(ctx, channelEmail, templateKey, err)
	if err != nil {
		return fmt.Errorf("send %s: %w", templateKey, err)
	}
	g.log.Debug("notification.sent", zap.String("template", templateKey), zap.Int("recipients", len(to)))
	return nil
}

func invoiceData(invoice invoicedomain.Invoice, customer *customerdomain.Customer) map[string]any {
	data := map[string]any{
		"customer_name": customer.Name,
		"number":        invoice.Number,
		"total":         invoice.Total.StringFixed(2),
		"currency":      invoice.Currency,
		"due_date":      invoice.DueDate.Format(dateLayout),
	}
	if invoice.LateFee.IsPositive() {
		data["late_fee"] = invoice.LateFee.StringFixed(2)
	}
	return data
}

func ticketData(ticket ticketdomain.SupportTicket, customer *customerdomain.Customer) map[string]any {
	return map[string]any{
		"customer_name": customer.Name,
		"ticket_id":     ticket.ID.String(),
		"subject_line":  ticket.Subject,
		"last_reply_at": formatDate(ticket.LastReplyAt),
		"closed_at":     formatDate(ticket.ClosedAt),
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}
