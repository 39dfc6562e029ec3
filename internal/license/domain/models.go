// Package domain contains persistence models for software licenses.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// LicenseStatus mirrors the owning subscription's lifecycle.
type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusSuspended LicenseStatus = "suspended"
	LicenseStatusRevoked   LicenseStatus = "revoked"
)

type License struct {
	ID                  snowflake.ID  `gorm:"primaryKey"`
	SubscriptionID      snowflake.ID  `gorm:"not null;index"`
	LicenseKey          string        `gorm:"type:varchar(64);not null;uniqueIndex"`
	Domain              string        `gorm:"type:text"`
	Status              LicenseStatus `gorm:"type:text;not null"`
	ExpiresAt           *time.Time    `gorm:""`
	SuspendedAt         *time.Time    `gorm:""`
	RevokedAt           *time.Time    `gorm:""`
	FirstNoticeSentAt   *time.Time    `gorm:""`
	SecondNoticeSentAt  *time.Time    `gorm:""`
	ExpiredNoticeSentAt *time.Time    `gorm:""`
	CreatedAt           time.Time     `gorm:"not null"`
	UpdatedAt           time.Time     `gorm:"not null"`
}

// TableName sets the database table name.
func (License) TableName() string { return "licenses" }

// NoticeKind identifies one of the expiry notices a license receives.
type NoticeKind string

const (
	NoticeFirst   NoticeKind = "first"
	NoticeSecond  NoticeKind = "second"
	NoticeExpired NoticeKind = "expired"
)

// Column is the stamp that guards the notice from being sent twice.
func (k NoticeKind) Column() string {
	switch k {
	case NoticeFirst:
		return "first_notice_sent_at"
	case NoticeSecond:
		return "second_notice_sent_at"
	case NoticeExpired:
		return "expired_notice_sent_at"
	default:
		return ""
	}
}

// Template is the notification template key for the notice.
func (k NoticeKind) Template() string {
	switch k {
	case NoticeFirst:
		return "license_expiry_first"
	case NoticeSecond:
		return "license_expiry_second"
	case NoticeExpired:
		return "license_expired"
	default:
		return ""
	}
}
