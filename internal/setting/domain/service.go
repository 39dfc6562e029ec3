package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the typed view over persisted tunables. Accessors never fail:
// missing or malformed values fall back to the registered default.
type Store interface {
	String(ctx context.Context, key string) string
	Int(ctx context.Context, key string) int
	Bool(ctx context.Context, key string) bool
	Decimal(ctx context.Context, key string) decimal.Decimal
	Time(ctx context.Context, key string) (time.Time, bool)

	Set(ctx context.Context, key, value string) error
	SetTime(ctx context.Context, key string, at time.Time) error
	SetMany(ctx context.Context, values map[string]string) error
}

var (
	ErrEmptyKey = errors.New("empty_setting_key")
)
