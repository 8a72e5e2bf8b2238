package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/telemetry"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	seedAdminEmail    string
	seedAdminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample products and an admin account",
	Long: `Seed migrates the database, then inserts a small sample catalog and an
admin user. Running it again keeps the existing admin, and the sample catalog
is only loaded into an empty products table.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "admin@storefront.local", "email of the seeded admin")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "admin123", "password of the seeded admin")
	rootCmd.AddCommand(seedCmd)
}

var sampleProducts = []domain.Product{
	{Name: "Wireless Mouse", Description: "Ergonomic 2.4GHz mouse", Price: decimal.RequireFromString("24.99"), StockQuantity: 50, Category: "Electronics"},
	{Name: "Mechanical Keyboard", Description: "Tenkeyless, brown switches", Price: decimal.RequireFromString("89.00"), StockQuantity: 20, Category: "Electronics"},
	{Name: "USB-C Hub", Description: "7-in-1 adapter", Price: decimal.RequireFromString("39.50"), StockQuantity: 8, Category: "Electronics"},
	{Name: "Desk Lamp", Description: "LED with dimmer", Price: decimal.RequireFromString("29.99"), StockQuantity: 15, Category: "Home"},
	{Name: "Coffee Mug", Description: "Ceramic, 350ml", Price: decimal.RequireFromString("9.99"), StockQuantity: 100, Category: "Home"},
	{Name: "Notebook", Description: "A5 dotted, 120 pages", Price: decimal.RequireFromString("6.50"), StockQuantity: 0, Category: "Stationery"},
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	telemetry.InitLogger(cfg.LogLevel)
	ctx := cmd.Context()

	creds := cfg.Credentials()
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// outside the transaction: a duplicate would abort it on postgres
	admin := &domain.User{Username: "admin", Email: seedAdminEmail, Role: domain.RoleAdmin}
	_, err = repo.Users().Create(ctx, admin, seedAdminPassword)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		slog.InfoContext(ctx, "admin already present", slog.String("email", seedAdminEmail))
	case err != nil:
		return fmt.Errorf("seed admin: %w", err)
	}

	n, err := seedCatalog(ctx, repo)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "seed completed", slog.Int("products", n))
	return nil
}

// seedCatalog inserts the sample products unless the catalog already has some.
// It returns how many products were added.
func seedCatalog(ctx context.Context, repo *repository.Repository) (int, error) {
	existing, err := repo.Products().Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	if existing > 0 {
		slog.InfoContext(ctx, "catalog not empty, skipping sample products", slog.Int("existing", existing))
		return 0, nil
	}

	err = repo.WithTx(ctx, func(tx repository.Repositories) error {
		for i := range sampleProducts {
			p := sampleProducts[i]
			if _, err := tx.Products().Create(ctx, &p); err != nil {
				return fmt.Errorf("seed product %q: %w", p.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(sampleProducts), nil
}
