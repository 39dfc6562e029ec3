package repository

import (
	"context"
	"errors"
	"time"

	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() settingdomain.Repository {
	return &repo{}
}

// The column is named "key", which MySQL reserves, so lookups go through
// the query builder to get dialect quoting.
func (r *repo) Get(ctx context.Context, db *gorm.DB, key string) (*settingdomain.Setting, error) {
	var row settingdomain.Setting
	err := db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key}).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, keys []string) ([]settingdomain.Setting, error) {
	var rows []settingdomain.Setting
	stmt := db.WithContext(ctx).Model(&settingdomain.Setting{})
	if len(keys) > 0 {
		stmt = stmt.Where(clause.IN{Column: clause.Column{Name: "key"}, Values: toAny(keys)})
	}
	if err := stmt.Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, key, value string, at time.Time) error {
	row := settingdomain.Setting{Key: key, Value: value, UpdatedAt: at}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
