package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, ticket *SupportTicket) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*SupportTicket, error)

	ListIdle(ctx context.Context, db *gorm.DB, statuses []TicketStatus, lastReplyBefore time.Time) ([]SupportTicket, error)
	AutoClose(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)

	ListAdminReminderCandidates(ctx context.Context, db *gorm.DB, lastReplyBefore time.Time) ([]SupportTicket, error)
	ClaimAdminReminder(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	ReleaseAdminReminder(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	ListFeedbackCandidates(ctx context.Context, db *gorm.DB, closedBefore time.Time) ([]SupportTicket, error)
	ClaimFeedback(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	ReleaseFeedback(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	DeleteClosedBefore(ctx context.Context, db *gorm.DB, closedBefore time.Time) (int64, error)
}

var ErrNotFound = errors.New("ticket_not_found")
