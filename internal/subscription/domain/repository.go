package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertPlan(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindPlanByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)

	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	ListByStatus(ctx context.Context, db *gorm.DB, status SubscriptionStatus) ([]Subscription, error)
	ListDueForInvoicing(ctx context.Context, db *gorm.DB, before time.Time) ([]Subscription, error)

	// Conditional transitions report whether a row changed.
	Suspend(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	Reactivate(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	Cancel(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)

	DeferNextInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID, nextInvoiceAt, at time.Time) error
	AdvancePeriod(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedNextInvoiceAt time.Time, period Period, at time.Time) (bool, error)
}

// Period is a billing window; NextInvoiceAt is when the following one is billed.
type Period struct {
	Start         time.Time
	End           time.Time
	NextInvoiceAt time.Time
}

var (
	ErrNotFound     = errors.New("subscription_not_found")
	ErrPlanNotFound = errors.New("plan_not_found")
)
