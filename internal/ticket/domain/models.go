// Package domain contains persistence models for customer support tickets.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type TicketStatus string

const (
	TicketStatusOpen          TicketStatus = "open"
	TicketStatusAnswered      TicketStatus = "answered"
	TicketStatusCustomerReply TicketStatus = "customer_reply"
	TicketStatusClosed        TicketStatus = "closed"
)

// ActiveStatuses are the statuses auto-close considers.
var ActiveStatuses = []TicketStatus{TicketStatusOpen, TicketStatusAnswered, TicketStatusCustomerReply}

type SupportTicket struct {
	ID                  snowflake.ID  `gorm:"primaryKey"`
	CustomerID          snowflake.ID  `gorm:"not null;index"`
	UserID              *snowflake.ID `gorm:""`
	Subject             string        `gorm:"type:text;not null"`
	Status              TicketStatus  `gorm:"type:text;not null"`
	LastReplyAt         *time.Time    `gorm:""`
	ClosedAt            *time.Time    `gorm:""`
	AutoClosedAt        *time.Time    `gorm:""`
	AdminReminderSentAt *time.Time    `gorm:""`
	FeedbackSentAt      *time.Time    `gorm:""`
	CreatedAt           time.Time     `gorm:"not null"`
	UpdatedAt           time.Time     `gorm:"not null"`
}

// TableName sets the database table name.
func (SupportTicket) TableName() string { return "support_tickets" }
