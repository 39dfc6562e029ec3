// Package guard holds the pure decision rules of a billing run.
package guard

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/dunning/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
	subscriptiondomain "github.com/smallbiznis/dunning/internal/subscription/domain"
)

var (
	ErrSubscriptionCancelled    = errors.New("subscription_cancelled")
	ErrSubscriptionNotSuspended = errors.New("subscription_not_suspended")
	ErrAccessOverride           = errors.New("customer_access_override")
	ErrOpenInvoices             = errors.New("subscription_has_open_invoices")
	ErrLatestInvoiceNotPaid     = errors.New("latest_invoice_not_paid")
)

type LateFeeType string

const (
	LateFeeFixed   LateFeeType = "fixed"
	LateFeePercent LateFeeType = "percent"
)

// ParseLateFeeType treats anything other than percent as fixed.
func ParseLateFeeType(raw string) LateFeeType {
	if strings.EqualFold(strings.TrimSpace(raw), string(LateFeePercent)) {
		return LateFeePercent
	}
	return LateFeeFixed
}

// LateFee returns the fee to add to an invoice. Percent fees are taken of
// the subtotal and rounded to cents. A non-positive result means no fee.
func LateFee(feeType LateFeeType, amount, subtotal decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	if feeType == LateFeePercent {
		return subtotal.Mul(amount).Div(decimal.NewFromInt(100)).Round(2)
	}
	return amount
}

// AgedCutoff returns the latest due date an invoice may have to be at least
// days old on today. ok is false when the threshold disables the rule.
func AgedCutoff(today time.Time, days int) (cutoff time.Time, ok bool) {
	if days <= 0 {
		return time.Time{}, false
	}
	return today.AddDate(0, 0, -days), true
}

// DayWindow returns the half-open range covering the calendar day.
func DayWindow(day time.Time) (from, before time.Time) {
	return day, day.AddDate(0, 0, 1)
}

// IdleCutoff is the exclusive upper bound for timestamps that fall on or
// before the end of day today-days.
func IdleCutoff(today time.Time, days int) (before time.Time, ok bool) {
	if days <= 0 {
		return time.Time{}, false
	}
	return today.AddDate(0, 0, -days+1), true
}

// EnsureCanSuspend is evaluated against the customer as read at decision time.
func EnsureCanSuspend(sub subscriptiondomain.Subscription, customer *customerdomain.Customer, now time.Time) error {
	if sub.Status == subscriptiondomain.SubscriptionStatusCancelled {
		return ErrSubscriptionCancelled
	}
	if customer != nil && customer.HasAccessOverride(now) {
		return ErrAccessOverride
	}
	return nil
}

func EnsureCanTerminate(sub subscriptiondomain.Subscription) error {
	if sub.Status == subscriptiondomain.SubscriptionStatusCancelled {
		return ErrSubscriptionCancelled
	}
	return nil
}

// EnsureCanUnsuspend requires the latest invoice to be paid and nothing
// left open, including invoices not yet due.
func EnsureCanUnsuspend(sub subscriptiondomain.Subscription, latest *invoicedomain.Invoice, openInvoices int64) error {
	if sub.Status != subscriptiondomain.SubscriptionStatusSuspended {
		return ErrSubscriptionNotSuspended
	}
	if openInvoices > 0 {
		return ErrOpenInvoices
	}
	if latest == nil || latest.Status != invoicedomain.InvoiceStatusPaid {
		return ErrLatestInvoiceNotPaid
	}
	return nil
}

// FixedTermAction is what invoice generation does with a due subscription.
type FixedTermAction int

const (
	ActionBill FixedTermAction = iota
	ActionDeferToPeriodEnd
	ActionEndTerm
)

// FixedTermDecision ends a term whose period end falls anywhere on or before
// today, and bills everything that is not cancelling at period end.
func FixedTermDecision(sub subscriptiondomain.Subscription, today time.Time) FixedTermAction {
	if !sub.CancelAtPeriodEnd {
		return ActionBill
	}
	if _, endOfToday := DayWindow(today); sub.CurrentPeriodEnd.Before(endOfToday) {
		return ActionEndTerm
	}
	return ActionDeferToPeriodEnd
}
