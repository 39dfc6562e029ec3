package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	auditrepo "github.com/smallbiznis/dunning/internal/audit/repository"
	auditservice "github.com/smallbiznis/dunning/internal/audit/service"
	"github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/clock"
	customerrepo "github.com/smallbiznis/dunning/internal/customer/repository"
	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/dunning/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/dunning/internal/invoice/service"
	licensedomain "github.com/smallbiznis/dunning/internal/license/domain"
	licenserepo "github.com/smallbiznis/dunning/internal/license/repository"
	notificationdomain "github.com/smallbiznis/dunning/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/dunning/internal/observability/metrics"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	settingrepo "github.com/smallbiznis/dunning/internal/setting/repository"
	settingservice "github.com/smallbiznis/dunning/internal/setting/service"
	subscriptionrepo "github.com/smallbiznis/dunning/internal/subscription/repository"
	"github.com/smallbiznis/dunning/internal/testutil"
	ticketdomain "github.com/smallbiznis/dunning/internal/ticket/domain"
	ticketrepo "github.com/smallbiznis/dunning/internal/ticket/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// sent is one delivered notification.
type sent struct {
	Method   string
	Template string
	TargetID string
}

// recordingGateway keeps every delivery; fail makes a method return an error.
type recordingGateway struct {
	mu        sync.Mutex
	sent      []sent
	summaries []notificationdomain.RunSummary
	fail      map[string]error
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{fail: map[string]error{}}
}

func (g *recordingGateway) deliver(method, template, targetID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail[method]; err != nil {
		return err
	}
	g.sent = append(g.sent, sent{Method: method, Template: template, TargetID: targetID})
	return nil
}

func (g *recordingGateway) SendInvoiceCreated(_ context.Context, invoice invoicedomain.Invoice) error {
	return g.deliver("SendInvoiceCreated", notificationdomain.TemplateInvoiceCreated, invoice.ID.String())
}

func (g *recordingGateway) SendInvoiceReminder(_ context.Context, invoice invoicedomain.Invoice, templateKey string) error {
	return g.deliver("SendInvoiceReminder", templateKey, invoice.ID.String())
}

func (g *recordingGateway) SendTicketAutoClose(_ context.Context, ticket ticketdomain.SupportTicket) error {
	return g.deliver("SendTicketAutoClose", notificationdomain.TemplateTicketAutoClosed, ticket.ID.String())
}

func (g *recordingGateway) SendTicketReminder(_ context.Context, ticket ticketdomain.SupportTicket) error {
	return g.deliver("SendTicketReminder", notificationdomain.TemplateTicketAdminReminder, ticket.ID.String())
}

func (g *recordingGateway) SendTicketFeedback(_ context.Context, ticket ticketdomain.SupportTicket) error {
	return g.deliver("SendTicketFeedback", notificationdomain.TemplateTicketFeedback, ticket.ID.String())
}

func (g *recordingGateway) SendLicenseExpiryNotice(_ context.Context, license licensedomain.License, templateKey string) error {
	return g.deliver("SendLicenseExpiryNotice", templateKey, license.ID.String())
}

func (g *recordingGateway) SendRunSummary(_ context.Context, summary notificationdomain.RunSummary) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["SendRunSummary"]; err != nil {
		return err
	}
	g.summaries = append(g.summaries, summary)
	return nil
}

func (g *recordingGateway) SendWatchdogAlert(_ context.Context, condition, _ string) error {
	return g.deliver("SendWatchdogAlert", notificationdomain.TemplateWatchdogAlert, condition)
}

// Method returns the deliveries made through one gateway method.
func (g *recordingGateway) Method(name string) []sent {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []sent
	for _, s := range g.sent {
		if s.Method == name {
			out = append(out, s)
		}
	}
	return out
}

func (g *recordingGateway) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = nil
	g.summaries = nil
}

type harness struct {
	t        *testing.T
	db       *gorm.DB
	clock    *clock.FakeClock
	fx       *testutil.Fixtures
	settings settingdomain.Store
	gateway  *recordingGateway
	registry *prometheus.Registry
	orch     *Orchestrator
}

func newHarness(t *testing.T, start time.Time) *harness {
	return newHarnessWithGateway(t, start, nil)
}

// newHarnessWithGateway wires real repositories over an in-memory database.
// A nil gateway installs a recordingGateway.
func newHarnessWithGateway(t *testing.T, start time.Time, gateway notificationdomain.Gateway) *harness {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := clock.NewFakeClock(start)
	node := testutil.Node(t)
	log := zap.NewNop()

	store := settingservice.NewService(settingservice.Params{
		DB:    db,
		Log:   log,
		Clock: clk,
		Repo:  settingrepo.Provide(),
	})
	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		Clock: clk,
		GenID: node,
		Repo:  auditrepo.Provide(),
	})
	subscriptions := subscriptionrepo.Provide()
	invoices := invoicerepo.Provide()
	calc := invoiceservice.NewCalculator(invoiceservice.Params{
		DB:               db,
		Log:              log,
		Clock:            clk,
		GenID:            node,
		Repo:             invoices,
		SubscriptionRepo: subscriptions,
		Settings:         store,
	})

	recorder := newRecordingGateway()
	if gateway == nil {
		gateway = recorder
	}
	registry := prometheus.NewRegistry()

	orch := NewOrchestrator(Params{
		DB:               db,
		Log:              log,
		Clock:            clk,
		Settings:         store,
		Audit:            audit,
		Notifier:         gateway,
		Calculator:       calc,
		SubscriptionRepo: subscriptions,
		InvoiceRepo:      invoices,
		LicenseRepo:      licenserepo.Provide(),
		TicketRepo:       ticketrepo.Provide(),
		CustomerRepo:     customerrepo.Provide(),
		Metrics:          obsmetrics.NewBillingRunMetricsForTest(registry),
	})

	return &harness{
		t:        t,
		db:       db,
		clock:    clk,
		fx:       testutil.NewFixtures(t, db, start),
		settings: store,
		gateway:  recorder,
		registry: registry,
		orch:     orch,
	}
}

// runOn runs the orchestrator for day with the clock at 06:00 that day.
func (h *harness) runOn(day time.Time) domain.RunResult {
	h.t.Helper()
	h.clock.Set(day.Add(6 * time.Hour))
	return h.orch.Run(context.Background(), day)
}

func (h *harness) auditCount(action string) int64 {
	h.t.Helper()
	return testutil.Count(h.t, h.db, "audit_logs", "action = ?", action)
}

// counterValue sums a counter family's samples whose labels include want.
func counterValue(t *testing.T, registry *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)

	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric.GetLabel(), want) {
				total += metric.GetCounter().GetValue()
			}
		}
	}
	return total
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	for key, value := range want {
		found := false
		for _, pair := range pairs {
			if pair.GetName() == key && pair.GetValue() == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
