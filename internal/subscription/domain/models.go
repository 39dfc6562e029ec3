// Package domain contains persistence models for plans and subscriptions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Interval is the billing period unit of a plan.
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Plan is the priced offering a subscription bills against.
type Plan struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	Name          string          `gorm:"type:text;not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency      string          `gorm:"type:text;not null"`
	Interval      Interval        `gorm:"column:billing_interval;type:text;not null"`
	IntervalCount int             `gorm:"not null;default:1"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }

// AddTo returns t advanced by one billing interval.
func (p Plan) AddTo(t time.Time) time.Time {
	count := p.IntervalCount
	if count <= 0 {
		count = 1
	}
	switch p.Interval {
	case IntervalDay:
		return t.AddDate(0, 0, count)
	case IntervalWeek:
		return t.AddDate(0, 0, 7*count)
	case IntervalYear:
		return t.AddDate(count, 0, 0)
	default:
		return t.AddDate(0, count, 0)
	}
}

// Subscription captures a customer's billing agreement.
type Subscription struct {
	ID                 snowflake.ID       `gorm:"primaryKey"`
	CustomerID         snowflake.ID       `gorm:"not null;index"`
	PlanID             snowflake.ID       `gorm:"not null;index"`
	Status             SubscriptionStatus `gorm:"type:text;not null"`
	CurrentPeriodStart time.Time          `gorm:"not null"`
	CurrentPeriodEnd   time.Time          `gorm:"not null"`
	NextInvoiceAt      time.Time          `gorm:"not null"`
	CancelAtPeriodEnd  bool               `gorm:"not null;default:false"`
	AutoRenew          bool               `gorm:"not null;default:true"`
	SuspendedAt        *time.Time         `gorm:""`
	CancelledAt        *time.Time         `gorm:""`
	CreatedAt          time.Time          `gorm:"not null"`
	UpdatedAt          time.Time          `gorm:"not null"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
