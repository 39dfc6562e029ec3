package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dunning/internal/config"
	customerrepo "github.com/smallbiznis/dunning/internal/customer/repository"
	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
	licensedomain "github.com/smallbiznis/dunning/internal/license/domain"
	notificationdomain "github.com/smallbiznis/dunning/internal/notification/domain"
	subscriptionrepo "github.com/smallbiznis/dunning/internal/subscription/repository"
	"github.com/smallbiznis/dunning/internal/testutil"
	ticketdomain "github.com/smallbiznis/dunning/internal/ticket/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockEmail struct {
	mock.Mock
}

func (m *mockEmail) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return m.Called(ctx, to, subject, htmlBody).Error(0)
}

func (m *mockEmail) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	return m.Called(ctx, to, templateName, data).Error(0)
}

func newGateway(t *testing.T, admins []string) (notificationdomain.Gateway, *mockEmail, *testutil.Fixtures) {
	t.Helper()
	db := testutil.OpenDB(t)
	provider := &mockEmail{}
	gw := NewEmailGateway(Params{
		DB:               db,
		Log:              zap.NewNop(),
		Config:           config.Config{AdminEmails: admins},
		Email:            provider,
		CustomerRepo:     customerrepo.Provide(),
		SubscriptionRepo: subscriptionrepo.Provide(),
	})
	return gw, provider, testutil.NewFixtures(t, db, testutil.Date(2024, 1, 8))
}

func TestReminderGoesToCustomer(t *testing.T) {
	gw, provider, fx := newGateway(t, []string{"ops@acme.test"})
	c := fx.Customer()
	inv := invoicedomain.Invoice{
		CustomerID: c.ID,
		Number:     "INV-1",
		Currency:   "USD",
		DueDate:    testutil.Date(2024, 1, 1),
		Total:      decimal.RequireFromString("110"),
		LateFee:    decimal.RequireFromString("10"),
	}

	provider.On("SendTemplate", mock.Anything, []string{c.Email}, "invoice_first_overdue", mock.MatchedBy(func(data map[string]any) bool {
		return data["number"] == "INV-1" && data["total"] == "110.00" && data["late_fee"] == "10.00" && data["due_date"] == "2024-01-01"
	})).Return(nil).Once()

	require.NoError(t, gw.SendInvoiceReminder(context.Background(), inv, "invoice_first_overdue"))
	provider.AssertExpectations(t)
}

func TestAdminNotificationsNeedRecipients(t *testing.T) {
	gw, provider, fx := newGateway(t, nil)
	c := fx.Customer()

	err := gw.SendInvoiceCreated(context.Background(), invoicedomain.Invoice{CustomerID: c.ID})
	assert.ErrorIs(t, err, notificationdomain.ErrNoAdminRecipients)

	err = gw.SendWatchdogAlert(context.Background(), "stale", "no run")
	assert.ErrorIs(t, err, notificationdomain.ErrNoAdminRecipients)
	provider.AssertNotCalled(t, "SendTemplate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUnknownCustomerIsReported(t *testing.T) {
	gw, _, _ := newGateway(t, []string{"ops@acme.test"})
	err := gw.SendTicketFeedback(context.Background(), ticketdomain.SupportTicket{CustomerID: 99})
	assert.ErrorIs(t, err, notificationdomain.ErrRecipientNotFound)
}

func TestLicenseNoticeResolvesCustomerThroughSubscription(t *testing.T) {
	gw, provider, fx := newGateway(t, nil)
	c := fx.Customer()
	p := fx.Plan("10", "year")
	s := fx.Subscription(c.ID, p.ID, testutil.Date(2024, 1, 1), testutil.Date(2025, 1, 1))
	expires := testutil.Date(2024, 2, 7)
	lic := fx.License(s.ID, licensedomain.LicenseStatusActive, func(l *licensedomain.License) { l.ExpiresAt = &expires })

	provider.On("SendTemplate", mock.Anything, []string{c.Email}, "license_expiry_first", mock.MatchedBy(func(data map[string]any) bool {
		return data["expires_at"] == "2024-02-07" && data["license_key"] == lic.LicenseKey
	})).Return(errors.New("smtp down")).Once()

	err := gw.SendLicenseExpiryNotice(context.Background(), *lic, "license_expiry_first")
	assert.ErrorContains(t, err, "smtp down")
	provider.AssertExpectations(t)
}

func TestRunSummarySortsMetrics(t *testing.T) {
	gw, provider, _ := newGateway(t, []string{"ops@acme.test"})

	provider.On("SendTemplate", mock.Anything, []string{"ops@acme.test"}, "billing_run_summary", mock.MatchedBy(func(data map[string]any) bool {
		rows, ok := data["metrics"].([]metricRow)
		return ok && len(rows) == 2 && rows[0].Name == "invoices_generated" && data["status"] == "failed"
	})).Return(nil).Once()

	err := gw.SendRunSummary(context.Background(), notificationdomain.RunSummary{
		RunID:      "01HRUN",
		Date:       testutil.Date(2024, 1, 8),
		Status:     "failed",
		Metrics:    map[string]int64{"late_fees_added": 1, "invoices_generated": 2},
		StartedAt:  testutil.Date(2024, 1, 8),
		FinishedAt: testutil.Date(2024, 1, 8).Add(time.Minute),
		Error:      "late_fees: boom",
	})
	require.NoError(t, err)
	provider.AssertExpectations(t)
}
