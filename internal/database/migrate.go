package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrations embed.FS

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Migrate applies every pending up migration for the dialect.
func Migrate(db *sql.DB, dialect Dialect) error {
	var (
		driver database.Driver
		name   string
		err    error
	)

	switch dialect {
	case SQLite:
		name = "sqlite3"
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case Postgres:
		name = "pgx5"
		driver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	default:
		return fmt.Errorf("unknown dialect %q", dialect)
	}

	if err != nil {
		return fmt.Errorf("creating %s migration driver: %w", dialect, err)
	}

	source, err := iofs.New(migrations, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, name, driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}
