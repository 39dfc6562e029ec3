package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/dunning/internal/audit/domain"
	customerdomain "github.com/smallbiznis/dunning/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/dunning/internal/invoice/domain"
	licensedomain "github.com/smallbiznis/dunning/internal/license/domain"
	settingdomain "github.com/smallbiznis/dunning/internal/setting/domain"
	subscriptiondomain "github.com/smallbiznis/dunning/internal/subscription/domain"
	ticketdomain "github.com/smallbiznis/dunning/internal/ticket/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table the orchestrator reads or writes.
func Models() []any {
	return []any{
		&customerdomain.Customer{},
		&subscriptiondomain.Plan{},
		&subscriptiondomain.Subscription{},
		&invoicedomain.Invoice{},
		&licensedomain.License{},
		&ticketdomain.SupportTicket{},
		&settingdomain.Setting{},
		&auditdomain.AuditLog{},
	}
}

// Run applies the schema. Postgres uses the versioned SQL files; the other
// dialects are created from the models.
func Run(conn *gorm.DB, dbType string, log *zap.Logger) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "", "postgres", "postgresql":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("migration.applied", zap.String("driver", "postgres"))
		return nil
	default:
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("migration.applied", zap.String("driver", dbType), zap.String("mode", "automigrate"))
		return nil
	}
}

// RunMigrations applies the embedded SQL files against a postgres handle.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}
