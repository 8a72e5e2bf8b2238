// Package cmd holds the storefront command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/fjod/storefront/internal/config"
	"github.com/spf13/cobra"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront - product catalog, session cart and checkout",
	Long: `Storefront serves a JSON API for browsing products, keeping a session
cart, registering and logging in, and placing orders.

Settings come from config.yaml (see --config-dir) and environment variables
such as DB_DRIVER, SESSION_BACKEND and KAFKA_BROKERS.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory holding an optional config.yaml")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configDir == "" {
		return config.Load()
	}
	return config.Load(configDir)
}
