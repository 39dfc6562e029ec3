package service

import (
	"context"
	"fmt"

	auditdomain "github.com/smallbiznis/dunning/internal/audit/domain"
	"github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/billingrun/guard"
	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	"go.uber.org/zap"
)

// reminderSchedule maps each reminder to its day setting. The sign is
// applied to today: unpaid reminders go out before the due date, overdue
// ones after it.
var reminderSchedule = []struct {
	kind invoicedomain.ReminderKind
	key  string
	sign int
}{
	{invoicedomain.ReminderUnpaid, settingdomain.KeyInvoiceUnpaidReminderDays, 1},
	{invoicedomain.ReminderFirstOverdue, settingdomain.KeyFirstOverdueReminderDays, -1},
	{invoicedomain.ReminderSecondOverdue, settingdomain.KeySecondOverdueReminderDays, -1},
	{invoicedomain.ReminderThirdOverdue, settingdomain.KeyThirdOverdueReminderDays, -1},
}

type invoiceReminders struct {
	stageBase
	invoices invoicedomain.Repository
}

func (s *invoiceReminders) Name() string { return domain.StageInvoiceReminders }

func (s *invoiceReminders) Run(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	if !s.settings.Bool(ctx, settingdomain.KeyPaymentReminderEmails) {
		return nil
	}

	for _, entry := range reminderSchedule {
		days := s.settings.Int(ctx, entry.key)
		if days <= 0 {
			continue
		}
		from, before := guard.DayWindow(rc.Today.AddDate(0, 0, entry.sign*days))

		candidates, err := s.invoices.ListReminderCandidates(ctx, s.db, entry.kind, from, before)
		if err != nil {
			return fmt.Errorf("%s reminders: %w", entry.kind, err)
		}
		for _, inv := range candidates {
			sent, err := s.send(ctx, inv, entry.kind, rc)
			if err != nil {
				return fmt.Errorf("invoice %s: %w", inv.ID, err)
			}
			if sent {
				m.InvoiceRemindersSent++
			}
		}
	}
	return nil
}

// send claims the reminder stamp, then delivers. A failed delivery gives
// the claim back so a later run on the same day can retry.
func (s *invoiceReminders) send(ctx context.Context, inv invoicedomain.Invoice, kind invoicedomain.ReminderKind, rc domain.RunContext) (bool, error) {
	claimed, err := s.invoices.ClaimReminder(ctx, s.db, inv.ID, kind, rc.Now)
	if err != nil || !claimed {
		return false, err
	}

	if err := s.notifier.SendInvoiceReminder(ctx, inv, kind.Template()); err != nil {
		s.notifyFailed(ctx, kind.Template(), inv.ID.String(), err)
		if releaseErr := s.invoices.ReleaseReminder(ctx, s.db, inv.ID, kind); releaseErr != nil {
			return false, releaseErr
		}
		return false, nil
	}

	s.logger(ctx).Info("billingrun.invoice.reminder_sent",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("kind", string(kind)),
	)
	s.record(ctx, auditdomain.ActionInvoiceReminderSent, "invoice", inv.ID.String(), map[string]any{
		"kind":     string(kind),
		"template": kind.Template(),
	})
	return true, nil
}
