package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	licensedomain "github.com/smallbiznis/dunning/internal/license/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() licensedomain.Repository {
	return &repo{}
}

const licenseColumns = `id, subscription_id, license_key, domain, status, expires_at, suspended_at, revoked_at,
	 first_notice_sent_at, second_notice_sent_at, expired_notice_sent_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, license *licensedomain.License) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO licenses (`+licenseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		license.ID,
		license.SubscriptionID,
		license.LicenseKey,
		license.Domain,
		license.Status,
		license.ExpiresAt,
		license.SuspendedAt,
		license.RevokedAt,
		license.FirstNoticeSentAt,
		license.SecondNoticeSentAt,
		license.ExpiredNoticeSentAt,
		license.CreatedAt,
		license.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*licensedomain.License, error) {
	var license licensedomain.License
	err := db.WithContext(ctx).Raw(
		`SELECT `+licenseColumns+` FROM licenses WHERE id = ?`,
		id,
	).Scan(&license).Error
	if err != nil {
		return nil, err
	}
	if license.ID == 0 {
		return nil, nil
	}
	return &license, nil
}

func (r *repo) ListBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]licensedomain.License, error) {
	var items []licensedomain.License
	err := db.WithContext(ctx).Raw(
		`SELECT `+licenseColumns+` FROM licenses WHERE subscription_id = ? ORDER BY id ASC`,
		subscriptionID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SuspendActive(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE licenses SET status = ?, suspended_at = ?, updated_at = ?
		 WHERE subscription_id = ? AND status = ?`,
		licensedomain.LicenseStatusSuspended,
		at,
		at,
		subscriptionID,
		licensedomain.LicenseStatusActive,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) RestoreSuspended(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE licenses SET status = ?, suspended_at = NULL, updated_at = ?
		 WHERE subscription_id = ? AND status = ?`,
		licensedomain.LicenseStatusActive,
		at,
		subscriptionID,
		licensedomain.LicenseStatusSuspended,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) RevokeAll(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE licenses SET status = ?, revoked_at = ?, updated_at = ?
		 WHERE subscription_id = ? AND status IN ?`,
		licensedomain.LicenseStatusRevoked,
		at,
		at,
		subscriptionID,
		[]licensedomain.LicenseStatus{licensedomain.LicenseStatusActive, licensedomain.LicenseStatusSuspended},
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ListNoticeCandidates(ctx context.Context, db *gorm.DB, kind licensedomain.NoticeKind, from *time.Time, before time.Time) ([]licensedomain.License, error) {
	column := kind.Column()
	if column == "" {
		return nil, licensedomain.ErrUnknownNoticeKind
	}

	stmt := db.WithContext(ctx).
		Model(&licensedomain.License{}).
		Where("status = ?", licensedomain.LicenseStatusActive).
		Where(column + " IS NULL").
		Where("expires_at IS NOT NULL AND expires_at < ?", before)
	if from != nil {
		stmt = stmt.Where("expires_at >= ?", *from)
	}

	var items []licensedomain.License
	if err := stmt.Order("expires_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ClaimNotice(ctx context.Context, db *gorm.DB, id snowflake.ID, kind licensedomain.NoticeKind, at time.Time) (bool, error) {
	column := kind.Column()
	if column == "" {
		return false, licensedomain.ErrUnknownNoticeKind
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE licenses SET `+column+` = ?, updated_at = ? WHERE id = ? AND `+column+` IS NULL`,
		at,
		at,
		id,
	)
	return result.RowsAffected == 1, result.Error
}

func (r *repo) ReleaseNotice(ctx context.Context, db *gorm.DB, id snowflake.ID, kind licensedomain.NoticeKind) error {
	column := kind.Column()
	if column == "" {
		return licensedomain.ErrUnknownNoticeKind
	}
	return db.WithContext(ctx).Exec(
		`UPDATE licenses SET `+column+` = NULL WHERE id = ?`,
		id,
	).Error
}
