package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/cvewatch/cve-dashboard/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Direction selects which way Migrate moves the schema.
type Direction int

const (
	Up Direction = iota
	Down
)

// MigrateURL returns the golang-migrate database URL for cfg.
func MigrateURL(cfg config.DatabaseConfig) (string, error) {
	mc, err := mysql.ParseDSN(DSN(cfg))
	if err != nil {
		return "", err
	}
	mc.MultiStatements = true
	return "mysql://" + mc.FormatDSN(), nil
}

// Migrate applies (Up) or reverts (Down) the embedded migrations.  An
// already up-to-date schema is not an error.  The statements use
// IF [NOT] EXISTS so a database created by the legacy ingestion scripts is
// adopted without failing.
func Migrate(cfg config.DatabaseConfig, dir Direction) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	dbURL, err := MigrateURL(cfg)
	if err != nil {
		return fmt.Errorf("build migrate url: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	switch dir {
	case Down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate failed: %w", err)
	}
	return nil
}
