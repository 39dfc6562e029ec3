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

// lateFees adds a single late fee to each invoice open past the grace window.
type lateFees struct {
	stageBase
	invoices invoicedomain.Repository
}

func (s *lateFees) Name() string { return domain.StageLateFees }

func (s *lateFees) Run(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	days := s.settings.Int(ctx, settingdomain.KeyLateFeeDays)
	amount := s.settings.Decimal(ctx, settingdomain.KeyLateFeeAmount)
	cutoff, ok := guard.AgedCutoff(rc.Today, days)
	if !ok || !amount.IsPositive() {
		return nil
	}
	feeType := guard.ParseLateFeeType(s.settings.String(ctx, settingdomain.KeyLateFeeType))

	candidates, err := s.invoices.ListLateFeeCandidates(ctx, s.db, cutoff)
	if err != nil {
		return err
	}

	for _, inv := range candidates {
		fee := guard.LateFee(feeType, amount, inv.Subtotal)
		if !fee.IsPositive() {
			continue
		}
		lateFee := inv.LateFee.Add(fee)
		total := inv.Subtotal.Add(lateFee)

		applied, err := s.invoices.ApplyLateFee(ctx, s.db, inv.ID, lateFee, total, rc.Now)
		if err != nil {
			return fmt.Errorf("invoice %s: %w", inv.ID, err)
		}
		if !applied {
			continue
		}
		m.LateFeesAdded++
		s.logger(ctx).Info("billingrun.invoice.late_fee_applied",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("fee", fee.StringFixed(2)),
			zap.String("total", total.StringFixed(2)),
		)
		s.record(ctx, auditdomain.ActionInvoiceLateFeeApplied, "invoice", inv.ID.String(), map[string]any{
			"fee_type": string(feeType),
			"fee":      fee.StringFixed(2),
			"total":    total.StringFixed(2),
		})
	}
	return nil
}
