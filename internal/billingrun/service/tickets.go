package service

import (
	"context"
	"fmt"

	auditdomain "github.com/smallbiznis/dunning/internal/audit/domain"
	"github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/billingrun/guard"
	notificationdomain "github.com/smallbiznis/dunning/internal/notification/domain"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	ticketdomain "github.com/smallbiznis/dunning/internal/ticket/domain"
	"go.uber.org/zap"
)

type ticketAutomation struct {
	stageBase
	tickets ticketdomain.Repository
}

func (s *ticketAutomation) Name() string { return domain.StageTicketAutomation }

func (s *ticketAutomation) Run(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	if err := s.autoClose(ctx, rc, m); err != nil {
		return fmt.Errorf("auto_close: %w", err)
	}
	if err := s.remindAdmins(ctx, rc, m); err != nil {
		return fmt.Errorf("admin_reminder: %w", err)
	}
	if err := s.requestFeedback(ctx, rc, m); err != nil {
		return fmt.Errorf("feedback: %w", err)
	}
	return nil
}

func (s *ticketAutomation) autoClose(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	before, ok := guard.IdleCutoff(rc.Today, s.settings.Int(ctx, settingdomain.KeyTicketAutoCloseDays))
	if !ok {
		return nil
	}
	tickets, err := s.tickets.ListIdle(ctx, s.db, ticketdomain.ActiveStatuses, before)
	if err != nil {
		return err
	}
	for _, ticket := range tickets {
		closed, err := s.tickets.AutoClose(ctx, s.db, ticket.ID, rc.Now)
		if err != nil {
			return fmt.Errorf("ticket %s: %w", ticket.ID, err)
		}
		if !closed {
			continue
		}
		m.TicketAutoClosed++
		s.record(ctx, auditdomain.ActionTicketAutoClosed, "ticket", ticket.ID.String(), map[string]any{
			"previous_status": string(ticket.Status),
		})

		ticket.Status = ticketdomain.TicketStatusClosed
		ticket.ClosedAt = &rc.Now
		ticket.AutoClosedAt = &rc.Now
		if err := s.notifier.SendTicketAutoClose(ctx, ticket); err != nil {
			s.notifyFailed(ctx, notificationdomain.TemplateTicketAutoClosed, ticket.ID.String(), err)
		}
	}
	return nil
}

func (s *ticketAutomation) remindAdmins(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	before, ok := guard.IdleCutoff(rc.Today, s.settings.Int(ctx, settingdomain.KeyTicketAdminReminderDays))
	if !ok {
		return nil
	}
	tickets, err := s.tickets.ListAdminReminderCandidates(ctx, s.db, before)
	if err != nil {
		return err
	}
	for _, ticket := range tickets {
		claimed, err := s.tickets.ClaimAdminReminder(ctx, s.db, ticket.ID, rc.Now)
		if err != nil {
			return fmt.Errorf("ticket %s: %w", ticket.ID, err)
		}
		if !claimed {
			continue
		}
		if err := s.notifier.SendTicketReminder(ctx, ticket); err != nil {
			s.notifyFailed(ctx, notificationdomain.TemplateTicketAdminReminder, ticket.ID.String(), err)
			if err := s.tickets.ReleaseAdminReminder(ctx, s.db, ticket.ID); err != nil {
				return fmt.Errorf("ticket %s: %w", ticket.ID, err)
			}
			continue
		}
		m.TicketAdminReminders++
		s.record(ctx, auditdomain.ActionTicketAdminReminded, "ticket", ticket.ID.String(), nil)
	}
	return nil
}

func (s *ticketAutomation) requestFeedback(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	before, ok := guard.IdleCutoff(rc.Today, s.settings.Int(ctx, settingdomain.KeyTicketFeedbackDays))
	if !ok {
		return nil
	}
	tickets, err := s.tickets.ListFeedbackCandidates(ctx, s.db, before)
	if err != nil {
		return err
	}
	for _, ticket := range tickets {
		claimed, err := s.tickets.ClaimFeedback(ctx, s.db, ticket.ID, rc.Now)
		if err != nil {
			return fmt.Errorf("ticket %s: %w", ticket.ID, err)
		}
		if !claimed {
			continue
		}
		if err := s.notifier.SendTicketFeedback(ctx, ticket); err != nil {
			s.notifyFailed(ctx, notificationdomain.TemplateTicketFeedback, ticket.ID.String(), err)
			if err := s.tickets.ReleaseFeedback(ctx, s.db, ticket.ID); err != nil {
				return fmt.Errorf("ticket %s: %w", ticket.ID, err)
			}
			continue
		}
		m.TicketFeedbackRequests++
		s.record(ctx, auditdomain.ActionTicketFeedbackRequested, "ticket", ticket.ID.String(), nil)
	}
	return nil
}

// ticketCleanup hard-deletes tickets closed longer than the retention window.
type ticketCleanup struct {
	stageBase
	tickets ticketdomain.Repository
}

func (s *ticketCleanup) Name() string { return domain.StageTicketCleanup }

func (s *ticketCleanup) Run(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	before, ok := guard.IdleCutoff(rc.Today, s.settings.Int(ctx, settingdomain.KeyTicketCleanupDays))
	if !ok {
		return nil
	}
	deleted, err := s.tickets.DeleteClosedBefore(ctx, s.db, before)
	if err != nil {
		return err
	}
	m.TicketsDeleted = deleted
	if deleted > 0 {
		s.logger(ctx).Info("billingrun.ticket.purged", zap.Int64("count", deleted))
		s.record(ctx, auditdomain.ActionTicketsPurged, "ticket", "", map[string]any{
			"count":         deleted,
			"closed_before": before.Format("2006-01-02"),
		})
	}
	return nil
}
