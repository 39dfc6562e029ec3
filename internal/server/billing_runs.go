package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/dunning/internal/audit/domain"
	billingrundomain "github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/clock"
	"go.uber.org/zap"
)

type triggerBillingRunRequest struct {
	Date string `json:"date"`
}

type billingRunResponse struct {
	RunID      string                     `json:"run_id"`
	Date       string                     `json:"date"`
	Status     billingrundomain.RunStatus `json:"status"`
	Error      string                     `json:"error,omitempty"`
	Metrics    billingrundomain.Metrics   `json:"metrics"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
}

func (s *Server) GetLastBillingRun(c *gin.Context) {
	last := billingrundomain.LoadLastRun(c.Request.Context(), s.settings)
	c.JSON(http.StatusOK, gin.H{"data": last})
}

// TriggerBillingRun runs the billing cycle synchronously. The body is
// optional; date defaults to today (UTC).
func (s *Server) TriggerBillingRun(c *gin.Context) {
	var req triggerBillingRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	today := clock.Today(s.clock)
	if date := strings.TrimSpace(req.Date); date != "" {
		parsed, err := time.Parse(time.DateOnly, date)
		if err != nil {
			AbortWithError(c, newValidationError("date", "invalid_date", "date must be YYYY-MM-DD"))
			return
		}
		today = parsed.UTC()
	}

	ctx := c.Request.Context()
	if err := s.auditSvc.AuditLog(ctx, auditdomain.ActionBillingRunTriggered, "billing_run", today.Format(time.DateOnly), map[string]any{
		"date":  today.Format(time.DateOnly),
		"token": c.GetString(contextBearerToken),
	}); err != nil {
		s.log.Warn("audit.write.failed", zap.String("action", auditdomain.ActionBillingRunTriggered), zap.Error(err))
	}

	result, err := s.trigger.Trigger(ctx, today)
	if err != nil {
		if !errors.Is(err, billingrundomain.ErrRunInProgress) {
			s.log.Error("billingrun.trigger.failed", zap.Error(err))
		}
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if !result.OK() {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"data": billingRunResponse{
		RunID:      result.RunID,
		Date:       result.Date.Format(time.DateOnly),
		Status:     result.Status,
		Error:      result.ErrorMessage(),
		Metrics:    result.Metrics,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}})
}
