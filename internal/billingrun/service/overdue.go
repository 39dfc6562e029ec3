package service

import (
	"context"

	auditdomain "github.com/smallbiznis/dunning/internal/audit/domain"
	"github.com/smallbiznis/dunning/internal/billingrun/domain"
	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
)

type overdueMarking struct {
	stageBase
	invoices invoicedomain.Repository
}

func (s *overdueMarking) Name() string { return domain.StageOverdueMarking }

func (s *overdueMarking) Run(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	marked, err := s.invoices.MarkOverdue(ctx, s.db, rc.Today, rc.Now)
	if err != nil {
		return err
	}
	m.InvoicesOverdue = marked
	if marked > 0 {
		s.record(ctx, auditdomain.ActionInvoicesMarkedOverdue, "invoice", "", map[string]any{
			"count":      marked,
			"due_before": rc.Today.Format("2006-01-02"),
		})
	}
	return nil
}
