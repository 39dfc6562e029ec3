package service

import (
	"context"

	auditdomain "github.com/smallbiznis/dunning/internal/audit/domain"
	notificationdomain "github.com/smallbiznis/dunning/internal/notification/domain"
	obslogger "github.com/smallbiznis/dunning/internal/observability/logger"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// stageBase carries what every stage needs besides its repositories.
type stageBase struct {
	db       *gorm.DB
	log      *zap.Logger
	settings settingdomain.Store
	audit    auditdomain.Service
	notifier notificationdomain.Gateway
}

func (b stageBase) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, b.log)
}

// record writes an audit row. Audit failures never fail a stage.
func (b stageBase) record(ctx context.Context, action, targetType, targetID string, metadata map[string]any) {
	if b.audit == nil {
		return
	}
	if err := b.audit.AuditLog(ctx, action, targetType, targetID, metadata); err != nil {
		b.logger(ctx).Warn("audit.write.failed",
			zap.String("action", action),
			zap.String("target_type", targetType),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
	}
}

// notifyFailed logs a gateway error; delivery problems do not stop a stage.
func (b stageBase) notifyFailed(ctx context.Context, template string, targetID string, err error) {
	b.logger(ctx).Warn("billingrun.notification.failed",
		zap.String("template", template),
		zap.String("target_id", targetID),
		zap.Error(err),
	)
}

// flag reports whether an enable_* switch is on and its day threshold is positive.
func (b stageBase) flag(ctx context.Context, enableKey, daysKey string) (int, bool) {
	if !b.settings.Bool(ctx, enableKey) {
		return 0, false
	}
	days := b.settings.Int(ctx, daysKey)
	return days, days > 0
}
