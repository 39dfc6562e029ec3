package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	ticketdomain "github.com/smallbiznis/dunning/internal/ticket/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ticketdomain.Repository {
	return &repo{}
}

const ticketColumns = `id, customer_id, user_id, subject, status, last_reply_at, closed_at, auto_closed_at,
	 admin_reminder_sent_at, feedback_sent_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, ticket *ticketdomain.SupportTicket) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO support_tickets (`+ticketColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ticket.ID,
		ticket.CustomerID,
		ticket.UserID,
		ticket.Subject,
		ticket.Status,
		ticket.LastReplyAt,
		ticket.ClosedAt,
		ticket.AutoClosedAt,
		ticket.AdminReminderSentAt,
		ticket.FeedbackSentAt,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ticketdomain.SupportTicket, error) {
	var ticket ticketdomain.SupportTicket
	err := db.WithContext(ctx).Raw(
		`SELECT `+ticketColumns+` FROM support_tickets WHERE id = ?`,
		id,
	).Scan(&ticket).Error
	if err != nil {
		return nil, err
	}
	if ticket.ID == 0 {
		return nil, nil
	}
	return &ticket, nil
}

func (r *repo) ListIdle(ctx context.Context, db *gorm.DB, statuses []ticketdomain.TicketStatus, lastReplyBefore time.Time) ([]ticketdomain.SupportTicket, error) {
	var items []ticketdomain.SupportTicket
	err := db.WithContext(ctx).Raw(
		`SELECT `+ticketColumns+` FROM support_tickets
		 WHERE status IN ? AND closed_at IS NULL AND last_reply_at IS NOT NULL AND last_reply_at < ?
		 ORDER BY last_reply_at ASC, id ASC`,
		statuses,
		lastReplyBefore,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) AutoClose(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE support_tickets SET status = ?, closed_at = ?, auto_closed_at = ?, updated_at = ?
		 WHERE id = ? AND status <> ? AND closed_at IS NULL`,
		ticketdomain.TicketStatusClosed,
		at,
		at,
		at,
		id,
		ticketdomain.TicketStatusClosed,
	)
	return result.RowsAffected == 1, result.Error
}

func (r *repo) ListAdminReminderCandidates(ctx context.Context, db *gorm.DB, lastReplyBefore time.Time) ([]ticketdomain.SupportTicket, error) {
	var items []ticketdomain.SupportTicket
	err := db.WithContext(ctx).Raw(
		`SELECT `+ticketColumns+` FROM support_tickets
		 WHERE status = ? AND admin_reminder_sent_at IS NULL
		 AND last_reply_at IS NOT NULL AND last_reply_at < ?
		 ORDER BY last_reply_at ASC, id ASC`,
		ticketdomain.TicketStatusCustomerReply,
		lastReplyBefore,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ClaimAdminReminder(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE support_tickets SET admin_reminder_sent_at = ?, updated_at = ?
		 WHERE id = ? AND admin_reminder_sent_at IS NULL`,
		at,
		at,
		id,
	)
	return result.RowsAffected == 1, result.Error
}

func (r *repo) ReleaseAdminReminder(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE support_tickets SET admin_reminder_sent_at = NULL WHERE id = ?`,
		id,
	).Error
}

func (r *repo) ListFeedbackCandidates(ctx context.Context, db *gorm.DB, closedBefore time.Time) ([]ticketdomain.SupportTicket, error) {
	var items []ticketdomain.SupportTicket
	err := db.WithContext(ctx).Raw(
		`SELECT `+ticketColumns+` FROM support_tickets
		 WHERE status = ? AND feedback_sent_at IS NULL
		 AND closed_at IS NOT NULL AND closed_at < ?
		 ORDER BY closed_at ASC, id ASC`,
		ticketdomain.TicketStatusClosed,
		closedBefore,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ClaimFeedback(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE support_tickets SET feedback_sent_at = ?, updated_at = ?
		 WHERE id = ? AND feedback_sent_at IS NULL`,
		at,
		at,
		id,
	)
	return result.RowsAffected == 1, result.Error
}

func (r *repo) ReleaseFeedback(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE support_tickets SET feedback_sent_at = NULL WHERE id = ?`,
		id,
	).Error
}

// DeleteClosedBefore hard-deletes; there is no tombstone.
func (r *repo) DeleteClosedBefore(ctx context.Context, db *gorm.DB, closedBefore time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM support_tickets WHERE status = ? AND closed_at IS NOT NULL AND closed_at < ?`,
		ticketdomain.TicketStatusClosed,
		closedBefore,
	)
	return result.RowsAffected, result.Error
}
