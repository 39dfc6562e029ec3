package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/dunning/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(Config{Type: "oracle"})
	assert.Error(t, err)
}

func TestDialectNames(t *testing.T) {
	for typ, want := range map[string]string{"postgres": "postgres", "mysql": "mysql", "sqlite": "sqlite"} {
		d, err := Dialect(Config{Type: typ})
		require.NoError(t, err)
		assert.Equal(t, want, d.Name())
	}
}

func TestPostgresURL(t *testing.T) {
	url := PostgresURL(Config{User: "u", Password: "p", Host: "db", Port: "5432", Name: "dunning"})
	assert.Equal(t, "postgres://u:p@db:5432/dunning?sslmode=disable", url)
}

func TestFromAppConfigConvertsSeconds(t *testing.T) {
	cfg := FromAppConfig(config.Config{DBType: "sqlite", DBConnMaxLifetime: 300})
	assert.Equal(t, "sqlite", cfg.Type)
	assert.Equal(t, float64(300), cfg.ConnMaxLifetime.Seconds())
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: settings.key")))
	assert.False(t, IsDuplicateKeyErr(nil))
}
