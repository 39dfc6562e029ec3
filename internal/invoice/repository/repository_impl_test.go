package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
	"github.com/smallbiznis/dunning/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkOverdueKeepsFirstStamp(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	today := testutil.Date(2024, 1, 10)
	fx := testutil.NewFixtures(t, db, today)
	r := Provide()

	c := fx.Customer()
	late := fx.Invoice(c.ID, nil, today.AddDate(0, 0, -1), "100")
	dueToday := fx.Invoice(c.ID, nil, today, "100")

	n, err := r.MarkOverdue(ctx, db, today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := r.FindByID(ctx, db, late.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusOverdue, got.Status)
	require.NotNil(t, got.OverdueAt)
	assert.True(t, got.OverdueAt.Equal(today))

	n, err = r.MarkOverdue(ctx, db, today.AddDate(0, 0, 1), today.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err = r.FindByID(ctx, db, late.ID)
	require.NoError(t, err)
	assert.True(t, got.OverdueAt.Equal(today))

	got, err = r.FindByID(ctx, db, dueToday.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusOverdue, got.Status)
}

func TestApplyLateFeeOnlyOnce(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	today := testutil.Date(2024, 1, 8)
	fx := testutil.NewFixtures(t, db, today)
	r := Provide()

	c := fx.Customer()
	inv := fx.Invoice(c.ID, nil, testutil.Date(2024, 1, 1), "100")

	candidates, err := r.ListLateFeeCandidates(ctx, db, testutil.Date(2024, 1, 1))
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	fee := decimal.NewFromInt(10)
	ok, err := r.ApplyLateFee(ctx, db, inv.ID, fee, inv.Subtotal.Add(fee), today)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ApplyLateFee(ctx, db, inv.ID, fee.Add(fee), inv.Subtotal.Add(fee).Add(fee), today)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := r.FindByID(ctx, db, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.LateFee.Equal(decimal.NewFromInt(10)))
	assert.True(t, got.Total.Equal(decimal.NewFromInt(110)))

	candidates, err = r.ListLateFeeCandidates(ctx, db, today)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestOpenSubscriptionIDsAreDistinct(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	today := testutil.Date(2024, 3, 1)
	fx := testutil.NewFixtures(t, db, today)
	r := Provide()

	c := fx.Customer()
	p := fx.Plan("50", "month")
	s := fx.Subscription(c.ID, p.ID, testutil.Date(2024, 1, 1), testutil.Date(2024, 2, 1))
	fx.Invoice(c.ID, &s.ID, testutil.Date(2024, 1, 1), "50")
	fx.Invoice(c.ID, &s.ID, testutil.Date(2024, 1, 15), "50")
	fx.Invoice(c.ID, &s.ID, testutil.Date(2024, 2, 20), "50")
	fx.Invoice(c.ID, nil, testutil.Date(2024, 1, 1), "50")

	ids, err := r.ListOpenSubscriptionIDs(ctx, db, testutil.Date(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, s.ID, ids[0])

	count, err := r.CountOpenBySubscription(ctx, db, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestFindLatestBySubscriptionOrdersByDueDate(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	today := testutil.Date(2024, 3, 1)
	fx := testutil.NewFixtures(t, db, today)
	r := Provide()

	c := fx.Customer()
	p := fx.Plan("50", "month")
	s := fx.Subscription(c.ID, p.ID, testutil.Date(2024, 1, 1), testutil.Date(2024, 2, 1))
	fx.Invoice(c.ID, &s.ID, testutil.Date(2024, 1, 1), "50")
	newest := fx.Invoice(c.ID, &s.ID, testutil.Date(2024, 2, 1), "50")
	fx.MarkInvoicePaid(newest.ID, today)

	got, err := r.FindLatestBySubscription(ctx, db, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newest.ID, got.ID)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, got.Status)

	none, err := r.FindLatestBySubscription(ctx, db, 12345)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestReminderClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	today := testutil.Date(2024, 1, 6)
	fx := testutil.NewFixtures(t, db, today)
	r := Provide()

	c := fx.Customer()
	due := testutil.Date(2024, 1, 1)
	inv := fx.Invoice(c.ID, nil, due, "100", func(i *invoicedomain.Invoice) {
		i.Status = invoicedomain.InvoiceStatusOverdue
	})

	items, err := r.ListReminderCandidates(ctx, db, invoicedomain.ReminderFirstOverdue, due, due.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, items, 1)

	items, err = r.ListReminderCandidates(ctx, db, invoicedomain.ReminderUnpaid, due, due.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, items)

	ok, err := r.ClaimReminder(ctx, db, inv.ID, invoicedomain.ReminderFirstOverdue, today)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.ClaimReminder(ctx, db, inv.ID, invoicedomain.ReminderFirstOverdue, today)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.ReleaseReminder(ctx, db, inv.ID, invoicedomain.ReminderFirstOverdue))
	ok, err = r.ClaimReminder(ctx, db, inv.ID, invoicedomain.ReminderFirstOverdue, today)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = r.ClaimReminder(ctx, db, inv.ID, invoicedomain.ReminderKind("bogus"), today)
	assert.ErrorIs(t, err, invoicedomain.ErrUnknownReminderKind)
}

func TestCancelOnlyTouchesOpenInvoices(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	today := testutil.Date(2024, 2, 1)
	fx := testutil.NewFixtures(t, db, today)
	r := Provide()

	c := fx.Customer()
	open := fx.Invoice(c.ID, nil, testutil.Date(2024, 1, 1), "10")
	paid := fx.Invoice(c.ID, nil, testutil.Date(2024, 1, 1), "10")
	fx.MarkInvoicePaid(paid.ID, today)

	ok, err := r.Cancel(ctx, db, open.ID, today)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Cancel(ctx, db, paid.ID, today)
	require.NoError(t, err)
	assert.False(t, ok)
}
