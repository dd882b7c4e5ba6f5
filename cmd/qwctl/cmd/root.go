// Package cmd contains the CLI commands for querywatch.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brisk-orange-fox/querywatch/internal/storage"
)

// defaultDBPath is the default database path, can be overridden via
// QUERYWATCH_DB_PATH env var or the --db flag.
var defaultDBPath = "data/querywatch.db"

func init() {
	if envPath := os.Getenv("QUERYWATCH_DB_PATH"); envPath != "" {
		defaultDBPath = envPath
	}
}

var dbPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "qwctl",
	Short: "QueryWatch - SQL alert monitoring",
	Long: `qwctl administers a QueryWatch deployment by operating directly on
its metadata database.

Examples:
  # List all alerts with their current status
  qwctl alert list

  # Run an alert now and print the outcome
  qwctl alert run --id <alert-id>

  # Register a data source and check connectivity
  qwctl datasource create --name orders-db --driver mysql --server db.internal --port 3306
  qwctl datasource probe --id <source-id>`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "metadata database path")
}

// openDB opens and migrates the metadata store.
func openDB() (*storage.SQLiteStorage, error) {
	store := storage.NewSQLiteStorage(dbPath)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-2] + ".."
}
