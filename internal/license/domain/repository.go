package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, license *License) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*License, error)
	ListBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]License, error)

	// Bulk mirrors of subscription transitions; they return rows changed.
	SuspendActive(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, at time.Time) (int64, error)
	RestoreSuspended(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, at time.Time) (int64, error)
	RevokeAll(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, at time.Time) (int64, error)

	// ListNoticeCandidates returns active licenses expiring in [from, before)
	// whose stamp for kind is unset. A nil from leaves the range open.
	ListNoticeCandidates(ctx context.Context, db *gorm.DB, kind NoticeKind, from *time.Time, before time.Time) ([]License, error)
	ClaimNotice(ctx context.Context, db *gorm.DB, id snowflake.ID, kind NoticeKind, at time.Time) (bool, error)
	ReleaseNotice(ctx context.Context, db *gorm.DB, id snowflake.ID, kind NoticeKind) error
}

var (
	ErrNotFound          = errors.New("license_not_found")
	ErrUnknownNoticeKind = errors.New("unknown_notice_kind")
)
