package watchdog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	billingrundomain "github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/clock"
	"github.com/smallbiznis/dunning/internal/notification/mock"
	obsmetrics "github.com/smallbiznis/dunning/internal/observability/metrics"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	settingrepo "github.com/smallbiznis/dunning/internal/setting/repository"
	settingservice "github.com/smallbiznis/dunning/internal/setting/service"
	"github.com/smallbiznis/dunning/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type watchdogEnv struct {
	clock    *clock.FakeClock
	settings settingdomain.Store
	gateway  *mock.MockGateway
	dog      *Watchdog
}

func newWatchdogEnv(t *testing.T, now time.Time) watchdogEnv {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := clock.NewFakeClock(now)
	store := settingservice.NewService(settingservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		Repo:  settingrepo.Provide(),
	})
	gateway := mock.NewMockGateway(gomock.NewController(t))
	dog, err := New(Params{
		Log:      zap.NewNop(),
		Clock:    clk,
		Settings: store,
		Notifier: gateway,
		Metrics:  obsmetrics.NewBillingRunMetricsForTest(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return watchdogEnv{clock: clk, settings: store, gateway: gateway, dog: dog}
}

func (e watchdogEnv) record(t *testing.T, status billingrundomain.RunStatus, startedAt time.Time, runAt *time.Time) {
	t.Helper()
	values := map[string]string{
		settingdomain.KeyBillingLastStatus:    string(status),
		settingdomain.KeyBillingLastStartedAt: startedAt.UTC().Format(time.RFC3339),
	}
	if runAt != nil {
		values[settingdomain.KeyBillingLastRunAt] = runAt.UTC().Format(time.RFC3339)
	}
	if status == billingrundomain.RunStatusFailed {
		values[settingdomain.KeyBillingLastError] = "lifecycle: connection reset"
	}
	require.NoError(t, e.settings.SetMany(context.Background(), values))
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(-d)
		return &v
	}
	cfg := DefaultConfig()

	cases := []struct {
		name string
		last billingrundomain.LastRun
		want Condition
	}{
		{"never ran", billingrundomain.LastRun{}, ConditionHealthy},
		{"recent success", billingrundomain.LastRun{Status: billingrundomain.RunStatusSuccess, StartedAt: at(3 * time.Hour), RunAt: at(2 * time.Hour)}, ConditionHealthy},
		{"failed", billingrundomain.LastRun{Status: billingrundomain.RunStatusFailed, StartedAt: at(time.Hour), RunAt: at(25 * time.Hour)}, ConditionFailed},
		{"running briefly", billingrundomain.LastRun{Status: billingrundomain.RunStatusRunning, StartedAt: at(time.Hour)}, ConditionHealthy},
		{"running too long", billingrundomain.LastRun{Status: billingrundomain.RunStatusRunning, StartedAt: at(3 * time.Hour)}, ConditionStuck},
		{"stale success", billingrundomain.LastRun{Status: billingrundomain.RunStatusSuccess, StartedAt: at(28 * time.Hour), RunAt: at(27 * time.Hour)}, ConditionStale},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(tc.last, now, cfg).Condition)
		})
	}
}

func TestCheckAlertsOncePerIncident(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	env := newWatchdogEnv(t, now)
	env.record(t, billingrundomain.RunStatusFailed, now.Add(-time.Hour), nil)

	env.gateway.EXPECT().
		SendWatchdogAlert(gomock.Any(), string(ConditionFailed), gomock.Any()).
		Return(nil).
		Times(1)

	first, err := env.dog.Check(ctx)
	require.NoError(t, err)
	assert.True(t, first.Alerted)
	assert.NotEmpty(t, env.settings.String(ctx, settingdomain.KeyBillingWatchdogAlertKey))

	second, err := env.dog.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, ConditionFailed, second.Condition)
	assert.False(t, second.Alerted)

	runAt := now.Add(-10 * time.Minute)
	env.record(t, billingrundomain.RunStatusSuccess, now.Add(-20*time.Minute), &runAt)
	healthy, err := env.dog.Check(ctx)
	require.NoError(t, err)
	assert.True(t, healthy.Healthy())
	assert.Empty(t, env.settings.String(ctx, settingdomain.KeyBillingWatchdogAlertKey))
}

func TestCheckAlertsAgainForNewIncident(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	env := newWatchdogEnv(t, now)
	env.record(t, billingrundomain.RunStatusFailed, now.Add(-time.Hour), nil)

	env.gateway.EXPECT().
		SendWatchdogAlert(gomock.Any(), string(ConditionFailed), gomock.Any()).
		Return(nil).
		Times(2)

	_, err := env.dog.Check(ctx)
	require.NoError(t, err)

	env.clock.Advance(24 * time.Hour)
	env.record(t, billingrundomain.RunStatusFailed, env.clock.Now().Add(-time.Minute), nil)
	report, err := env.dog.Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.Alerted)
}

func TestCheckRetriesWhenAlertDeliveryFails(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	env := newWatchdogEnv(t, now)
	env.record(t, billingrundomain.RunStatusRunning, now.Add(-3*time.Hour), nil)

	gomock.InOrder(
		env.gateway.EXPECT().SendWatchdogAlert(gomock.Any(), string(ConditionStuck), gomock.Any()).Return(errors.New("smtp unavailable")),
		env.gateway.EXPECT().SendWatchdogAlert(gomock.Any(), string(ConditionStuck), gomock.Any()).Return(nil),
	)

	failed, err := env.dog.Check(ctx)
	require.NoError(t, err)
	assert.False(t, failed.Alerted)
	assert.Empty(t, env.settings.String(ctx, settingdomain.KeyBillingWatchdogAlertKey))

	retried, err := env.dog.Check(ctx)
	require.NoError(t, err)
	assert.True(t, retried.Alerted)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
