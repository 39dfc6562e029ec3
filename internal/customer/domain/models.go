package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Customer struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	Name                string       `gorm:"not null" json:"name"`
	Email               string       `gorm:"not null" json:"email"`
	AccessOverrideUntil *time.Time   `json:"access_override_until,omitempty"`
	CreatedAt           time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }

// HasAccessOverride reports whether the customer is temporarily exempt
// from suspension at the given instant.
func (c Customer) HasAccessOverride(now time.Time) bool {
	return c.AccessOverrideUntil != nil && c.AccessOverrideUntil.After(now)
}
