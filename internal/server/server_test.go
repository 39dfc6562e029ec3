package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/dunning/internal/audit/domain"
	auditrepo "github.com/smallbiznis/dunning/internal/audit/repository"
	auditservice "github.com/smallbiznis/dunning/internal/audit/service"
	billingrundomain "github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/clock"
	"github.com/smallbiznis/dunning/internal/config"
	"github.com/smallbiznis/dunning/internal/observability"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	settingrepo "github.com/smallbiznis/dunning/internal/setting/repository"
	settingservice "github.com/smallbiznis/dunning/internal/setting/service"
	"github.com/smallbiznis/dunning/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTrigger struct {
	dates  []time.Time
	result billingrundomain.RunResult
	err    error
}

func (f *fakeTrigger) Trigger(ctx context.Context, today time.Time) (billingrundomain.RunResult, error) {
	_ = ctx
	f.dates = append(f.dates, today)
	if f.err != nil {
		return billingrundomain.RunResult{}, f.err
	}
	result := f.result
	result.Date = today
	return result, nil
}

type serverEnv struct {
	engine   *gin.Engine
	trigger  *fakeTrigger
	settings settingdomain.Store
	audit    auditdomain.Service
}

func newServerEnv(t *testing.T, apiToken string) serverEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC))
	settings := settingservice.NewService(settingservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		Repo:  settingrepo.Provide(),
	})
	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		GenID: testutil.Node(t),
		Repo:  auditrepo.Provide(),
	})
	trigger := &fakeTrigger{result: billingrundomain.RunResult{
		RunID:   "01HTESTRUN",
		Status:  billingrundomain.RunStatusSuccess,
		Metrics: billingrundomain.Metrics{InvoicesOverdue: 3},
	}}

	engine := NewEngine(observability.Config{}, nil)
	NewServer(Params{
		Engine:   engine,
		Config:   config.Config{HTTP: config.HTTPConfig{APIToken: apiToken}},
		Log:      zap.NewNop(),
		Clock:    clk,
		Trigger:  trigger,
		Settings: settings,
		AuditSvc: audit,
	})
	return serverEnv{engine: engine, trigger: trigger, settings: settings, audit: audit}
}

func (e serverEnv) do(method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newServerEnv(t, "")
	w := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestTriggerBillingRunDefaultsToToday(t *testing.T) {
	env := newServerEnv(t, "")
	w := env.do(http.MethodPost, "/api/billing-runs", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, env.trigger.dates, 1)
	assert.Equal(t, testutil.Date(2024, 5, 10), env.trigger.dates[0])

	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "01HTESTRUN", data["run_id"])
	assert.Equal(t, "2024-05-10", data["date"])
	assert.Equal(t, "success", data["status"])
	assert.Equal(t, float64(3), data["metrics"].(map[string]any)["invoices_overdue"])
}

func TestTriggerBillingRunAcceptsDate(t *testing.T) {
	env := newServerEnv(t, "")
	w := env.do(http.MethodPost, "/api/billing-runs", "", []byte(`{"date":"2024-04-30"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, env.trigger.dates, 1)
	assert.Equal(t, testutil.Date(2024, 4, 30), env.trigger.dates[0])

	w = env.do(http.MethodPost, "/api/billing-runs", "", []byte(`{"date":"30/04/2024"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, env.trigger.dates, 1)
}

func TestTriggerBillingRunRequiresToken(t *testing.T) {
	env := newServerEnv(t, "dun_opskey1234")

	w := env.do(http.MethodPost, "/api/billing-runs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(http.MethodPost, "/api/billing-runs", "dun_wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, env.trigger.dates)

	w = env.do(http.MethodPost, "/api/billing-runs", "dun_opskey1234", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp, err := env.audit.List(context.Background(), auditdomain.ListAuditLogRequest{
		Action: auditdomain.ActionBillingRunTriggered,
	})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	entry := resp.AuditLogs[0]
	assert.Equal(t, "operator", entry.ActorType)
	assert.Equal(t, "2024-05-10", entry.Metadata["date"])
	assert.Equal(t, "dun_****1234", entry.Metadata["token"])
}

func TestTriggerBillingRunConflict(t *testing.T) {
	env := newServerEnv(t, "")
	env.trigger.err = billingrundomain.ErrRunInProgress

	w := env.do(http.MethodPost, "/api/billing-runs", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "conflict", body["error"].(map[string]any)["type"])
}

func TestTriggerBillingRunReportsFailure(t *testing.T) {
	env := newServerEnv(t, "")
	env.trigger.result = billingrundomain.RunResult{
		RunID:  "01HFAILED",
		Status: billingrundomain.RunStatusFailed,
		Err:    errors.New("late_fees: database is locked"),
	}

	w := env.do(http.MethodPost, "/api/billing-runs", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "failed", data["status"])
	assert.Equal(t, "late_fees: database is locked", data["error"])
}

func TestGetLastBillingRun(t *testing.T) {
	env := newServerEnv(t, "")
	ctx := context.Background()
	require.NoError(t, env.settings.SetMany(ctx, map[string]string{
		settingdomain.KeyBillingLastStatus:    "success",
		settingdomain.KeyBillingLastStartedAt: "2024-05-10T00:05:00Z",
		settingdomain.KeyBillingLastRunAt:     "2024-05-10T00:06:00Z",
		settingdomain.KeyBillingLastMetrics:   `{"suspensions":2}`,
	}))

	w := env.do(http.MethodGet, "/api/billing-runs/last", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "success", data["status"])
	assert.Equal(t, "2024-05-10T00:06:00Z", data["run_at"])
	assert.Equal(t, float64(2), data["metrics"].(map[string]any)["suspensions"])
}

func TestListAuditLogs(t *testing.T) {
	env := newServerEnv(t, "")
	require.NoError(t, env.audit.AuditLog(context.Background(), auditdomain.ActionSubscriptionSuspended, "subscription", "42", nil))

	w := env.do(http.MethodGet, "/api/audit-logs?target_type=subscription", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, auditdomain.ActionSubscriptionSuspended, data[0].(map[string]any)["action"])

	w = env.do(http.MethodGet, "/api/audit-logs?start_at=yesterday", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
