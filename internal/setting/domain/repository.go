package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Get(ctx context.Context, db *gorm.DB, key string) (*Setting, error)
	List(ctx context.Context, db *gorm.DB, keys []string) ([]Setting, error)
	Upsert(ctx context.Context, db *gorm.DB, key, value string, at time.Time) error
}
