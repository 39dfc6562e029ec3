package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/dunning/internal/audit/domain"
	"github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/billingrun/guard"
	customerdomain "github.com/smallbiznis/dunning/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
	licensedomain "github.com/smallbiznis/dunning/internal/license/domain"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	subscriptiondomain "github.com/smallbiznis/dunning/internal/subscription/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// lifecycle escalates non-payment: auto-cancel invoices, suspend, terminate,
// then lifts suspensions that have been paid off. Every step re-reads the
// subscription so a later step sees what an earlier one did.
type lifecycle struct {
	stageBase
	subscriptions subscriptiondomain.Repository
	invoices      invoicedomain.Repository
	licenses      licensedomain.Repository
	customers     customerdomain.Repository
}

func (s *lifecycle) Name() string { return domain.StageLifecycle }

func (s *lifecycle) Run(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	steps := []struct {
		name string
		run  func(context.Context, domain.RunContext, *domain.Metrics) error
	}{
		{"auto_cancellation", s.autoCancel},
		{"suspension", s.suspend},
		{"termination", s.terminate},
		{"unsuspension", s.unsuspend},
	}
	for _, step := range steps {
		if err := step.run(ctx, rc, m); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}

func (s *lifecycle) autoCancel(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	days, ok := s.flag(ctx, settingdomain.KeyEnableAutoCancellation, settingdomain.KeyAutoCancellationDays)
	if !ok {
		return nil
	}
	cutoff, _ := guard.AgedCutoff(rc.Today, days)

	invoices, err := s.invoices.ListOpenDueOnOrBefore(ctx, s.db, cutoff)
	if err != nil {
		return err
	}
	for _, inv := range invoices {
		cancelled, err := s.invoices.Cancel(ctx, s.db, inv.ID, rc.Now)
		if err != nil {
			return fmt.Errorf("invoice %s: %w", inv.ID, err)
		}
		if !cancelled {
			continue
		}
		m.AutoCancellations++
		s.record(ctx, auditdomain.ActionInvoiceAutoCancelled, "invoice", inv.ID.String(), map[string]any{
			"previous_status": string(inv.Status),
			"due_date":        inv.DueDate.Format("2006-01-02"),
		})
	}
	return nil
}

func (s *lifecycle) suspend(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	days, ok := s.flag(ctx, settingdomain.KeyEnableSuspension, settingdomain.KeySuspendDays)
	if !ok {
		return nil
	}
	cutoff, _ := guard.AgedCutoff(rc.Today, days)

	ids, err := s.invoices.ListOpenSubscriptionIDs(ctx, s.db, cutoff)
	if err != nil {
		return err
	}
	for _, id := range ids {
		suspended, err := s.suspendOne(ctx, id, rc)
		if err != nil {
			return fmt.Errorf("subscription %s: %w", id, err)
		}
		if suspended {
			m.Suspensions++
		}
	}
	return nil
}

// suspendOne reports whether the subscription itself moved to suspended.
// Licenses are suspended even when the subscription already was.
func (s *lifecycle) suspendOne(ctx context.Context, id snowflake.ID, rc domain.RunContext) (bool, error) {
	var (
		suspended bool
		licenses  int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.subscriptions.FindByID(ctx, tx, id)
		if err != nil || sub == nil {
			return err
		}
		customer, err := s.customers.FindByID(ctx, tx, sub.CustomerID)
		if err != nil {
			return err
		}
		if err := guard.EnsureCanSuspend(*sub, customer, rc.Now); err != nil {
			s.logger(ctx).Debug("billingrun.subscription.suspension_skipped",
				zap.String("subscription_id", id.String()),
				zap.String("reason", err.Error()),
			)
			return nil
		}
		if sub.Status == subscriptiondomain.SubscriptionStatusActive {
			suspended, err = s.subscriptions.Suspend(ctx, tx, id, rc.Now)
			if err != nil {
				return err
			}
		}
		licenses, err = s.licenses.SuspendActive(ctx, tx, id, rc.Now)
		return err
	})
	if err != nil {
		return false, err
	}
	if suspended {
		s.logger(ctx).Info("billingrun.subscription.suspended",
			zap.String("subscription_id", id.String()),
			zap.Int64("licenses_suspended", licenses),
		)
		s.record(ctx, auditdomain.ActionSubscriptionSuspended, "subscription", id.String(), map[string]any{
			"licenses_suspended": licenses,
		})
	}
	return suspended, nil
}

func (s *lifecycle) terminate(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	days, ok := s.flag(ctx, settingdomain.KeyEnableTermination, settingdomain.KeyTerminationDays)
	if !ok {
		return nil
	}
	cutoff, _ := guard.AgedCutoff(rc.Today, days)

	ids, err := s.invoices.ListOpenSubscriptionIDs(ctx, s.db, cutoff)
	if err != nil {
		return err
	}
	for _, id := range ids {
		var (
			terminated bool
			revoked    int64
		)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			sub, err := s.subscriptions.FindByID(ctx, tx, id)
			if err != nil || sub == nil {
				return err
			}
			if guard.EnsureCanTerminate(*sub) != nil {
				return nil
			}
			terminated, err = s.subscriptions.Cancel(ctx, tx, id, rc.Now)
			if err != nil || !terminated {
				return err
			}
			revoked, err = s.licenses.RevokeAll(ctx, tx, id, rc.Now)
			return err
		})
		if err != nil {
			return fmt.Errorf("subscription %s: %w", id, err)
		}
		if !terminated {
			continue
		}
		m.Terminations++
		s.logger(ctx).Info("billingrun.subscription.terminated",
			zap.String("subscription_id", id.String()),
			zap.Int64("licenses_revoked", revoked),
		)
		s.record(ctx, auditdomain.ActionSubscriptionTerminated, "subscription", id.String(), map[string]any{
			"licenses_revoked": revoked,
		})
	}
	return nil
}

func (s *lifecycle) unsuspend(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	if !s.settings.Bool(ctx, settingdomain.KeyEnableUnsuspension) {
		return nil
	}

	subs, err := s.subscriptions.ListByStatus(ctx, s.db, subscriptiondomain.SubscriptionStatusSuspended)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		var (
			restored bool
			licenses int64
		)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			latest, err := s.invoices.FindLatestBySubscription(ctx, tx, sub.ID)
			if err != nil {
				return err
			}
			open, err := s.invoices.CountOpenBySubscription(ctx, tx, sub.ID)
			if err != nil {
				return err
			}
			if guard.EnsureCanUnsuspend(sub, latest, open) != nil {
				return nil
			}
			restored, err = s.subscriptions.Reactivate(ctx, tx, sub.ID, rc.Now)
			if err != nil || !restored {
				return err
			}
			licenses, err = s.licenses.RestoreSuspended(ctx, tx, sub.ID, rc.Now)
			return err
		})
		if err != nil {
			return fmt.Errorf("subscription %s: %w", sub.ID, err)
		}
		if !restored {
			continue
		}
		m.Unsuspensions++
		s.logger(ctx).Info("billingrun.subscription.unsuspended",
			zap.String("subscription_id", sub.ID.String()),
			zap.Int64("licenses_restored", licenses),
		)
		s.record(ctx, auditdomain.ActionSubscriptionUnsuspended, "subscription", sub.ID.String(), map[string]any{
			"licenses_restored": licenses,
		})
	}
	return nil
}
