package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	boostdomain "github.com/smallbiznis/boostd/internal/boost/domain"
	catalogdomain "github.com/smallbiznis/boostd/internal/catalog/domain"
	ledgerdomain "github.com/smallbiznis/boostd/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/boostd/internal/payment/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded postgres migrations.
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
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every table this service owns.
func Models() []any {
	return []any{
		&catalogdomain.Listing{},
		&boostdomain.BoostRecord{},
		&ledgerdomain.LedgerEntry{},
		&paymentdomain.Charge{},
		&paymentdomain.Wallet{},
	}
}

// AutoMigrate builds the schema from the models. Used for sqlite and mysql,
// where the postgres migrations do not apply, and by tests.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}
