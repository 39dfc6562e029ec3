package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	redis "github.com/redis/go-redis/v9"
	billingrundomain "github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/clock"
	"github.com/smallbiznis/dunning/internal/notification/mock"
	obsmetrics "github.com/smallbiznis/dunning/internal/observability/metrics"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	settingrepo "github.com/smallbiznis/dunning/internal/setting/repository"
	settingservice "github.com/smallbiznis/dunning/internal/setting/service"
	"github.com/smallbiznis/dunning/internal/testutil"
	"github.com/smallbiznis/dunning/internal/watchdog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRunner records its invocations and writes run bookkeeping the way the
// orchestrator does.
type fakeRunner struct {
	mu       sync.Mutex
	settings settingdomain.Store
	clock    clock.Clock
	calls    []time.Time
	fail     error
	block    chan struct{}
	started  chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context, today time.Time) billingrundomain.RunResult {
	r.mu.Lock()
	r.calls = append(r.calls, today)
	r.mu.Unlock()
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}

	now := r.clock.Now()
	result := billingrundomain.RunResult{
		RunID:      "run-test",
		Date:       today,
		Status:     billingrundomain.RunStatusSuccess,
		StartedAt:  now,
		FinishedAt: now,
	}
	values := map[string]string{
		settingdomain.KeyBillingLastStatus:    string(billingrundomain.RunStatusSuccess),
		settingdomain.KeyBillingLastStartedAt: now.UTC().Format(time.RFC3339),
		settingdomain.KeyBillingLastError:     "",
	}
	if r.fail != nil {
		result.Status = billingrundomain.RunStatusFailed
		result.Err = r.fail
		values[settingdomain.KeyBillingLastStatus] = string(billingrundomain.RunStatusFailed)
		values[settingdomain.KeyBillingLastError] = r.fail.Error()
	} else {
		values[settingdomain.KeyBillingLastRunAt] = now.UTC().Format(time.RFC3339)
	}
	_ = r.settings.SetMany(ctx, values)
	return result
}

func (r *fakeRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type schedulerEnv struct {
	clock    *clock.FakeClock
	settings settingdomain.Store
	runner   *fakeRunner
	registry *prometheus.Registry
	metrics  *obsmetrics.BillingRunMetrics
}

func newSchedulerEnv(t *testing.T, now time.Time) schedulerEnv {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := clock.NewFakeClock(now)
	store := settingservice.NewService(settingservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		Repo:  settingrepo.Provide(),
	})
	registry := prometheus.NewRegistry()
	return schedulerEnv{
		clock:    clk,
		settings: store,
		runner:   &fakeRunner{settings: store, clock: clk},
		registry: registry,
		metrics:  obsmetrics.NewBillingRunMetricsForTest(registry),
	}
}

func (e schedulerEnv) scheduler(t *testing.T, cfg Config, locker *Locker, dog *watchdog.Watchdog) *Scheduler {
	t.Helper()
	s, err := New(Params{
		Log:      zap.NewNop(),
		Clock:    e.clock,
		Runner:   e.runner,
		Settings: e.settings,
		Watchdog: dog,
		Locker:   locker,
		Metrics:  e.metrics,
		Config:   cfg,
	})
	require.NoError(t, err)
	return s
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{RunHour: 30}.withDefaults()
	assert.Equal(t, 15*time.Minute, cfg.RunInterval)
	assert.Equal(t, 0, cfg.RunHour)
	assert.Equal(t, "dunning:billing_run:lock", cfg.LockKey)
	assert.Equal(t, 2*time.Hour, cfg.LockTTL)
}

func TestDueRespectsRunHourAndTodaysSuccess(t *testing.T) {
	now := time.Date(2024, 5, 10, 1, 30, 0, 0, time.UTC)
	env := newSchedulerEnv(t, now)
	s := env.scheduler(t, Config{RunHour: 2}, nil, nil)
	ctx := context.Background()

	assert.False(t, s.Due(ctx, now), "before run hour")
	assert.True(t, s.Due(ctx, now.Add(time.Hour)))

	require.NoError(t, env.settings.SetTime(ctx, settingdomain.KeyBillingLastRunAt, now.Add(-24*time.Hour)))
	assert.True(t, s.Due(ctx, now.Add(time.Hour)), "yesterday's success does not count")

	require.NoError(t, env.settings.SetTime(ctx, settingdomain.KeyBillingLastRunAt, now.Add(45*time.Minute)))
	assert.False(t, s.Due(ctx, now.Add(time.Hour)))
}

func TestTickRunsOncePerSuccessfulDay(t *testing.T) {
	now := time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC)
	env := newSchedulerEnv(t, now)
	s := env.scheduler(t, Config{}, nil, nil)
	ctx := context.Background()

	require.NoError(t, s.Tick(ctx))
	require.Equal(t, 1, env.runner.Calls())
	assert.Equal(t, testutil.Date(2024, 5, 10), env.runner.calls[0])

	env.clock.Advance(15 * time.Minute)
	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, 1, env.runner.Calls(), "second tick on the same day is a no-op")

	env.clock.AdvanceDays(1)
	require.NoError(t, s.Tick(ctx))
	require.Equal(t, 2, env.runner.Calls())
	assert.Equal(t, testutil.Date(2024, 5, 11), env.runner.calls[1])
}

func TestTickRetriesAfterFailedRun(t *testing.T) {
	now := time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC)
	env := newSchedulerEnv(t, now)
	env.runner.fail = errors.New("late_fees: database is locked")
	s := env.scheduler(t, Config{}, nil, nil)
	ctx := context.Background()

	err := s.Tick(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")

	env.runner.fail = nil
	env.clock.Advance(15 * time.Minute)
	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, 2, env.runner.Calls())
}

func TestTickRunsWatchdogAfterFailedRun(t *testing.T) {
	now := time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC)
	env := newSchedulerEnv(t, now)
	env.runner.fail = errors.New("overdue_marking: boom")

	gateway := mock.NewMockGateway(gomock.NewController(t))
	gateway.EXPECT().
		SendWatchdogAlert(gomock.Any(), string(watchdog.ConditionFailed), gomock.Any()).
		Return(nil).
		Times(1)
	dog, err := watchdog.New(watchdog.Params{
		Log:      zap.NewNop(),
		Clock:    env.clock,
		Settings: env.settings,
		Notifier: gateway,
	})
	require.NoError(t, err)

	s := env.scheduler(t, Config{}, nil, dog)
	require.Error(t, s.Tick(context.Background()))
}

func TestTriggerRejectsConcurrentRunInProcess(t *testing.T) {
	now := time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC)
	env := newSchedulerEnv(t, now)
	env.runner.block = make(chan struct{})
	env.runner.started = make(chan struct{}, 1)
	s := env.scheduler(t, Config{}, nil, nil)
	ctx := context.Background()
	today := testutil.Date(2024, 5, 10)

	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(ctx, today)
		done <- err
	}()
	<-env.runner.started

	_, err := s.Trigger(ctx, today)
	assert.ErrorIs(t, err, billingrundomain.ErrRunInProgress)

	close(env.runner.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, env.runner.Calls())
	assert.Equal(t, float64(1), counterValue(t, env.registry, "dunning_billing_run_lock_contention_total", nil))

	// The guard is released once the run returns.
	env.runner.block = nil
	env.runner.started = nil
	_, err = s.Trigger(ctx, today)
	require.NoError(t, err)
}

func TestTriggerHonoursDistributedLock(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC)
	env := newSchedulerEnv(t, now)
	cfg := Config{}.withDefaults()
	s := env.scheduler(t, cfg, NewLocker(client, cfg.LockKey, cfg.LockTTL), nil)
	ctx := context.Background()

	require.NoError(t, server.Set(cfg.LockKey, "other-replica"))
	_, err := s.Trigger(ctx, testutil.Date(2024, 5, 10))
	assert.ErrorIs(t, err, billingrundomain.ErrRunInProgress)
	assert.Equal(t, 0, env.runner.Calls())
	assert.Equal(t, float64(1), counterValue(t, env.registry, "dunning_billing_run_lock_contention_total", nil))

	server.Del(cfg.LockKey)
	result, err := s.Trigger(ctx, testutil.Date(2024, 5, 10))
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, 1, env.runner.Calls())
	assert.False(t, server.Exists(cfg.LockKey), "lock released after the run")
}

func TestLockerLifecycle(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	locker := NewLocker(client, "dunning:test:lock", time.Minute)
	token, ok, err := locker.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)
	assert.Equal(t, time.Minute, server.TTL("dunning:test:lock"))

	_, ok, err = locker.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder is refused")

	require.NoError(t, locker.Release(ctx, "someone-else"))
	assert.True(t, server.Exists("dunning:test:lock"), "foreign token must not release")

	require.NoError(t, locker.Release(ctx, token))
	assert.False(t, server.Exists("dunning:test:lock"))

	server.FastForward(2 * time.Minute)
	_, ok, err = locker.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockerValidation(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	_, _, err := NewLocker(client, "", time.Minute).TryLock(ctx)
	assert.ErrorIs(t, err, ErrLockKeyEmpty)
	_, _, err = NewLocker(client, "k", 0).TryLock(ctx)
	assert.ErrorIs(t, err, ErrLockTTLInvalid)
}

func TestNilLockerGrantsEveryRequest(t *testing.T) {
	var locker *Locker
	assert.Nil(t, NewLocker(nil, "k", time.Minute))

	token, ok, err := locker.TryLock(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, token)
	assert.NoError(t, locker.Release(context.Background(), token))
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) && metric.GetCounter() != nil {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	for key, value := range labels {
		found := false
		for _, pair := range metric.GetLabel() {
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
