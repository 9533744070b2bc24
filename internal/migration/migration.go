package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/smallbiznis/tenantdesk/internal/config"
	tenantdomain "github.com/smallbiznis/tenantdesk/internal/tenant/domain"
	treasurydomain "github.com/smallbiznis/tenantdesk/internal/treasury/domain"
	"github.com/smallbiznis/tenantdesk/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Apply brings the schema up to date and seeds the treasury accounts, so a fresh
// database is usable on first start. Postgres runs the versioned SQL; other dialects
// fall back to gorm AutoMigrate.
func Apply(ctx context.Context, conn *gorm.DB, cfg config.Config, treasury treasurydomain.Service, log *zap.Logger) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	switch cfg.DBType {
	case db.TypePostgres:
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
	default:
		if err := AutoMigrate(conn); err != nil {
			return err
		}
	}

	if err := treasury.EnsureAccounts(ctx); err != nil {
		return fmt.Errorf("seed treasury accounts: %w", err)
	}

	log.Info("schema ready", zap.String("db_type", cfg.DBType))
	return nil
}

// AutoMigrate creates the tables from the gorm models.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&tenantdomain.Tenant{}, &treasurydomain.Account{}, &treasurydomain.Entry{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(sqlDB *sql.DB) error {
	if sqlDB == nil {
		return errors.New("migration database handle is required")
	}

	src, err := Source()
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, db.TypePostgres, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}

// Source exposes the embedded migrations as a golang-migrate source.
func Source() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	driver, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return driver, nil
}
