package service

import (
	"context"
	"fmt"
	"time"

	auditdomain "github.com/smallbiznis/dunning/internal/audit/domain"
	"github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/billingrun/guard"
	licensedomain "github.com/smallbiznis/dunning/internal/license/domain"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
)

type licenseNotices struct {
	stageBase
	licenses licensedomain.Repository
}

func (s *licenseNotices) Name() string { return domain.StageLicenseNotices }

func (s *licenseNotices) Run(ctx context.Context, rc domain.RunContext, m *domain.Metrics) error {
	for _, entry := range []struct {
		kind licensedomain.NoticeKind
		key  string
	}{
		{licensedomain.NoticeFirst, settingdomain.KeyLicenseExpiryFirstNoticeDays},
		{licensedomain.NoticeSecond, settingdomain.KeyLicenseExpirySecondNoticeDays},
	} {
		days := s.settings.Int(ctx, entry.key)
		if days <= 0 {
			continue
		}
		from, before := guard.DayWindow(rc.Today.AddDate(0, 0, days))
		sent, err := s.notify(ctx, entry.kind, &from, before, rc)
		m.LicenseExpiryNotices += sent
		if err != nil {
			return err
		}
	}

	// Expired notices catch every active license past its expiry, however late.
	_, endOfToday := guard.DayWindow(rc.Today)
	sent, err := s.notify(ctx, licensedomain.NoticeExpired, nil, endOfToday, rc)
	m.LicenseExpiryNotices += sent
	return err
}

func (s *licenseNotices) notify(ctx context.Context, kind licensedomain.NoticeKind, from *time.Time, before time.Time, rc domain.RunContext) (int64, error) {
	candidates, err := s.licenses.ListNoticeCandidates(ctx, s.db, kind, from, before)
	if err != nil {
		return 0, fmt.Errorf("%s notices: %w", kind, err)
	}

	var sent int64
	for _, license := range candidates {
		claimed, err := s.licenses.ClaimNotice(ctx, s.db, license.ID, kind, rc.Now)
		if err != nil {
			return sent, fmt.Errorf("license %s: %w", license.ID, err)
		}
		if !claimed {
			continue
		}
		if err := s.notifier.SendLicenseExpiryNotice(ctx, license, kind.Template()); err != nil {
			s.notifyFailed(ctx, kind.Template(), license.ID.String(), err)
			if err := s.licenses.ReleaseNotice(ctx, s.db, license.ID, kind); err != nil {
				return sent, fmt.Errorf("license %s: %w", license.ID, err)
			}
			continue
		}
		sent++
		s.record(ctx, auditdomain.ActionLicenseNoticeSent, "license", license.ID.String(), map[string]any{
			"kind":     string(kind),
			"template": kind.Template(),
		})
	}
	return sent, nil
}
