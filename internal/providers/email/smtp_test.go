package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderEveryTemplate(t *testing.T) {
	for name := range subjects {
		msg, err := Render(name, map[string]any{
			"number":        "INV-20240101-0001",
			"customer_name": "Acme",
			"total":         "110.00",
			"currency":      "USD",
			"due_date":      "2024-01-01",
			"subject_line":  "Login broken",
			"domain":        "acme.test",
			"expires_at":    "2024-02-01",
			"status":        "success",
			"date":          "2024-01-08",
			"condition":     "stale",
		})
		require.NoError(t, err, name)
		assert.NotEmpty(t, msg.Subject, name)
		assert.Contains(t, msg.HTML, "</html>", name)
	}
}

func TestRenderSubjectOverrideAndUnknown(t *testing.T) {
	msg, err := Render("invoice_created", map[string]any{"subject": "Custom", "number": "X"})
	require.NoError(t, err)
	assert.Equal(t, "Custom", msg.Subject)

	_, err = Render("does_not_exist", nil)
	assert.Error(t, err)
}

func TestSMTPSendBuildsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	p := NewSMTP(Config{Host: "mail.test", Port: 2525, From: "billing@acme.test"})
	p.now = func() time.Time { return time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC) }
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.Nil(t, a)
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"a@acme.test", "b@acme.test"}, "billing_watchdog_alert", map[string]any{
		"condition": "failed",
		"detail":    "last run failed",
	})
	require.NoError(t, err)

	assert.Equal(t, "mail.test:2525", gotAddr)
	assert.Equal(t, "billing@acme.test", gotFrom)
	assert.Len(t, gotTo, 2)
	raw := string(gotMsg)
	assert.True(t, strings.HasPrefix(raw, "From: billing@acme.test\r\n"))
	assert.Contains(t, raw, "To: a@acme.test, b@acme.test\r\n")
	assert.Contains(t, raw, "Subject: Billing watchdog: failed\r\n")
	assert.Contains(t, raw, "last run failed")

	assert.ErrorIs(t, p.Send(context.Background(), nil, "s", "b"), ErrNoRecipients)
}

func TestNoOpStillValidatesTemplates(t *testing.T) {
	p := NewNoOp(zap.NewNop())
	assert.NoError(t, p.SendTemplate(context.Background(), []string{"x@y"}, "ticket_feedback", map[string]any{}))
	assert.Error(t, p.SendTemplate(context.Background(), []string{"x@y"}, "missing", nil))
}
