package email

import (
	"context"

	"go.uber.org/zap"
)

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error
}

// NoOpProvider logs instead of sending. It is used when SMTP is not configured.
type NoOpProvider struct {
	log *zap.Logger
}

func NewNoOp(log *zap.Logger) *NoOpProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &NoOpProvider{log: log}
}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	p.log.Debug("email.skipped", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	if _, err := Render(templateName, data); err != nil {
		return err
	}
	p.log.Debug("email.skipped", zap.Strings("to", to), zap.String("template", templateName))
	return nil
}
