package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator abre una conexion database/sql (lib/pq) y arma el migrador sobre
// las migraciones embebidas. El llamador debe cerrar ambos.
func NewMigrator(databaseURL string) (*migrate.Migrate, *sql.DB, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, conn, nil
}

// RunMigrations aplica todas las migraciones pendientes. Sin cambios no es error.
func RunMigrations(databaseURL string) error {
	m, conn, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// MigrationVersion devuelve la version aplicada y si quedo marcada como sucia.
func MigrationVersion(databaseURL string) (uint, bool, error) {
	m, conn, err := NewMigrator(databaseURL)
	if err != nil {
		return 0, false, err
	}
	defer conn.Close()
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}
