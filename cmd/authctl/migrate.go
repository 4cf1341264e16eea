package main

import (
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"authsuite/internal/db"
)

// NewMigrateCmd agrupa los subcomandos de migracion.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE:  runMigrateVersion,
	})
	return cmd
}

type migrateConfig struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
}

// databaseURL solo necesita DATABASE_URL; migrar no requiere el resto de la config.
func databaseURL() (string, error) {
	_ = godotenv.Load()
	var cfg migrateConfig
	if err := env.Parse(&cfg); err != nil {
		return "", oops.Code("CONFIG_INVALID").Wrapf(err, "parse migrate config")
	}
	return cfg.DatabaseURL, nil
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	url, err := databaseURL()
	if err != nil {
		return err
	}
	cmd.Println("Running migrations...")
	if err := db.RunMigrations(url); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	url, err := databaseURL()
	if err != nil {
		return err
	}
	version, dirty, err := db.MigrationVersion(url)
	if err != nil {
		return oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	cmd.Printf("version=%d dirty=%t\n", version, dirty)
	return nil
}
