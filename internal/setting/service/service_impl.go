package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dunning/internal/clock"
	"github.com/smallbiznis/dunning/internal/config"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   settingdomain.Repository
	Holder *config.SettingsHolder `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	repo   settingdomain.Repository
	holder *config.SettingsHolder
}

func NewService(p Params) settingdomain.Store {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("setting.service"),
		clock:  p.Clock,
		repo:   p.Repo,
		holder: p.Holder,
	}
}

// lookup resolves a key: database row, then settings.yml, then Defaults.
func (s *Service) lookup(ctx context.Context, key string) string {
	row, err := s.repo.Get(ctx, s.db, key)
	if err != nil {
		s.log.Warn("setting.lookup_failed", zap.String("key", key), zap.Error(err))
	}
	if row != nil {
		return strings.TrimSpace(row.Value)
	}
	if value, ok := s.holder.Lookup(key); ok {
		return strings.TrimSpace(value)
	}
	return settingdomain.Defaults[key]
}

func (s *Service) String(ctx context.Context, key string) string {
	return s.lookup(ctx, key)
}

func (s *Service) Int(ctx context.Context, key string) int {
	raw := s.lookup(ctx, key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		s.log.Warn("setting.invalid_int", zap.String("key", key), zap.String("value", raw))
		fallback, _ := strconv.Atoi(settingdomain.Defaults[key])
		return fallback
	}
	return value
}

func (s *Service) Bool(ctx context.Context, key string) bool {
	switch strings.ToLower(s.lookup(ctx, key)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off", "":
		return false
	default:
		s.log.Warn("setting.invalid_bool", zap.String("key", key))
		return false
	}
}

func (s *Service) Decimal(ctx context.Context, key string) decimal.Decimal {
	raw := s.lookup(ctx, key)
	if raw == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		s.log.Warn("setting.invalid_decimal", zap.String("key", key), zap.String("value", raw))
		return decimal.Zero
	}
	return value
}

func (s *Service) Time(ctx context.Context, key string) (time.Time, bool) {
	raw := s.lookup(ctx, key)
	if raw == "" {
		return time.Time{}, false
	}
	value, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		s.log.Warn("setting.invalid_time", zap.String("key", key), zap.String("value", raw))
		return time.Time{}, false
	}
	return value.UTC(), true
}

func (s *Service) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return settingdomain.ErrEmptyKey
	}
	return s.repo.Upsert(ctx, s.db, key, value, s.clock.Now().UTC())
}

func (s *Service) SetTime(ctx context.Context, key string, at time.Time) error {
	return s.Set(ctx, key, at.UTC().Format(time.RFC3339))
}

// SetMany writes all values in one transaction.
func (s *Service) SetMany(ctx context.Context, values map[string]string) error {
	now := s.clock.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			key = strings.TrimSpace(key)
			if key == "" {
				return settingdomain.ErrEmptyKey
			}
			if err := s.repo.Upsert(ctx, tx, key, value, now); err != nil {
				return err
			}
		}
		return nil
	})
}
