package service

import (
	"context"
	"fmt"

	auditdomain "github.com/smallbiznis/dunning/internal/audit/domain"
	"github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/billingrun/guard"
	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
	licensedomain "github.com/smallbiznis/dunning/internal/license/domain"
	notificationdomain "github.com/smallbiznis/dunning/internal/notification/domain"
	subscriptiondomain "github.com/smallbiznis/dunning/internal/subscription/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// invoiceGeneration bills subscriptions whose next invoice date has
// arrived and ends fixed-term subscriptions at their period end.
type invoiceGeneration struct {
	stageBase
	subscriptions subscriptiondomain.Repository
	licenses      licensedomain.Repository
	calculator    invoicedomain.Calculator
}

func (s *invoiceGeneration) Name() string { return domain.StageInvoiceGeneration }

func (s *invoiceGeneration) Run(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	_, endOfToday := guard.DayWindow(rc.Today)
	subs, err := s.subscriptions.ListDueForInvoicing(ctx, s.db, endOfToday)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		switch guard.FixedTermDecision(sub, rc.Today) {
		case guard.ActionEndTerm:
			ended, err := s.endFixedTerm(ctx, sub, rc)
			if err != nil {
				return fmt.Errorf("subscription %s: %w", sub.ID, err)
			}
			if ended {
				m.FixedTermTerminations++
			}
		case guard.ActionDeferToPeriodEnd:
			if err := s.subscriptions.DeferNextInvoice(ctx, s.db, sub.ID, sub.CurrentPeriodEnd, rc.Now); err != nil {
				return fmt.Errorf("subscription %s: %w", sub.ID, err)
			}
		default:
			invoice, err := s.calculator.CreateDueInvoice(ctx, sub.ID, rc.Today)
			if err != nil {
				return fmt.Errorf("subscription %s: %w", sub.ID, err)
			}
			if invoice == nil {
				continue
			}
			m.InvoicesGenerated++
			s.record(ctx, auditdomain.ActionInvoiceGenerated, "invoice", invoice.ID.String(), map[string]any{
				"subscription_id": sub.ID.String(),
				"number":          invoice.Number,
				"total":           invoice.Total.String(),
				"due_date":        invoice.DueDate.Format("2006-01-02"),
			})
			if err := s.notifier.SendInvoiceCreated(ctx, *invoice); err != nil {
				s.notifyFailed(ctx, notificationdomain.TemplateInvoiceCreated, invoice.ID.String(), err)
			}
		}
	}

	return nil
}

// endFixedTerm cancels the subscription and revokes its licenses together.
func (s *invoiceGeneration) endFixedTerm(ctx context.Context, sub subscriptiondomain.Subscription, rc domain.RunContext) (bool, error) {
	var (
		ended   bool
		revoked int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ended, err = s.subscriptions.Cancel(ctx, tx, sub.ID, rc.Now)
		if err != nil || !ended {
			return err
		}
		revoked, err = s.licenses.RevokeAll(ctx, tx, sub.ID, rc.Now)
		return err
	})
	if err != nil || !ended {
		return false, err
	}

	s.logger(ctx).Info("billingrun.subscription.fixed_term_ended",
		zap.String("subscription_id", sub.ID.String()),
		zap.Int64("licenses_revoked", revoked),
	)
	s.record(ctx, auditdomain.ActionSubscriptionExpired, "subscription", sub.ID.String(), map[string]any{
		"period_end":       sub.CurrentPeriodEnd.UTC().Format("2006-01-02"),
		"licenses_revoked": revoked,
	})
	return true, nil
}
