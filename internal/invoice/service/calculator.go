package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dunning/internal/clock"
	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
	"github.com/smallbiznis/dunning/internal/invoice/format"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	subscriptiondomain "github.com/smallbiznis/dunning/internal/subscription/domain"
	"github.com/smallbiznis/dunning/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	Clock            clock.Clock
	GenID            *snowflake.Node
	Repo             invoicedomain.Repository
	SubscriptionRepo subscriptiondomain.Repository
	Settings         settingdomain.Store
}

// Calculator bills a subscription's plan amount for the period that
// starts at its current period end.
type Calculator struct {
	db               *gorm.DB
	log              *zap.Logger
	clock            clock.Clock
	genID            *snowflake.Node
	repo             invoicedomain.Repository
	subscriptionRepo subscriptiondomain.Repository
	settings         settingdomain.Store
	numberTemplate   string
}

func NewCalculator(p Params) invoicedomain.Calculator {
	return &Calculator{
		db:               p.DB,
		log:              p.Log.Named("invoice.calculator"),
		clock:            p.Clock,
		genID:            p.GenID,
		repo:             p.Repo,
		subscriptionRepo: p.SubscriptionRepo,
		settings:         p.Settings,
		numberTemplate:   format.DefaultInvoiceNumberTemplate,
	}
}

func (c *Calculator) CreateDueInvoice(ctx context.Context, subscriptionID snowflake.ID, today time.Time) (*invoicedomain.Invoice, error) {
	today = clock.StartOfDay(today)
	termsDays := c.settings.Int(ctx, settingdomain.KeyInvoicePaymentTermsDays)
	if termsDays < 0 {
		termsDays = 0
	}

	var created *invoicedomain.Invoice
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := c.subscriptionRepo.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrNotFound
		}
		if sub.Status != subscriptiondomain.SubscriptionStatusActive || !sub.NextInvoiceAt.Before(today.AddDate(0, 0, 1)) {
			return nil
		}

		plan, err := c.subscriptionRepo.FindPlanByID(ctx, tx, sub.PlanID)
		if err != nil {
			return err
		}
		if plan == nil {
			return invoicedomain.ErrPlanMissing
		}
		if plan.Amount.IsNegative() {
			return invoicedomain.ErrInvalidPlanAmount
		}

		now := c.clock.Now().UTC()
		period := subscriptiondomain.Period{
			Start: sub.CurrentPeriodEnd,
			End:   plan.AddTo(sub.CurrentPeriodEnd),
		}
		period.NextInvoiceAt = period.End

		advanced, err := c.subscriptionRepo.AdvancePeriod(ctx, tx, sub.ID, sub.NextInvoiceAt, period, now)
		if err != nil {
			return err
		}
		if !advanced {
			return nil
		}
		if plan.Amount.IsZero() {
			c.log.Debug("invoice.calculator.zero_amount_skipped", zap.String("subscription_id", sub.ID.String()))
			return nil
		}

		// numbers follow the issue day, which can differ from a backfilled billing date
		issued := clock.StartOfDay(now)
		seq, err := c.repo.CountCreatedBetween(ctx, tx, issued, issued.AddDate(0, 0, 1))
		if err != nil {
			return err
		}
		number, err := format.InvoiceNumber(c.numberTemplate, issued, seq+1)
		if err != nil {
			return err
		}

		subID := sub.ID
		periodStart, periodEnd := period.Start, period.End
		amount := plan.Amount.Round(2)
		invoice := &invoicedomain.Invoice{
			ID:             c.genID.Generate(),
			CustomerID:     sub.CustomerID,
			SubscriptionID: &subID,
			Number:         number,
			Status:         invoicedomain.InvoiceStatusUnpaid,
			Currency:       plan.Currency,
			DueDate:        today.AddDate(0, 0, termsDays),
			PeriodStart:    &periodStart,
			PeriodEnd:      &periodEnd,
			Subtotal:       amount,
			LateFee:        decimal.Zero,
			Total:          amount,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := c.repo.Insert(ctx, tx, invoice); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return fmt.Errorf("%w: %s", invoicedomain.ErrNumberTaken, number)
			}
			return fmt.Errorf("insert invoice %s: %w", number, err)
		}
		created = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
