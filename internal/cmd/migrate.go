package cmd

import (
	"fmt"
	"log/slog"

	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/telemetry"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	telemetry.InitLogger(cfg.LogLevel)

	creds := cfg.Credentials()
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("database migrations completed", slog.String("driver", creds.Driver))
	return nil
}
