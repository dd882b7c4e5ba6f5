package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/brisk-orange-fox/querywatch/internal/models"
	"github.com/brisk-orange-fox/querywatch/internal/source"
)

var (
	dsID          string
	dsName        string
	dsDisplayName string
	dsDriver      string
	dsServer      string
	dsPort        int
	dsDatabase    string
	dsUsername    string
	dsPassword    string
)

// datasourceCmd represents the datasource command group
var datasourceCmd = &cobra.Command{
	Use:   "datasource",
	Short: "Data source management commands",
	Long: `Commands for managing registered data sources.

The password can be passed via --password or the QUERYWATCH_DS_PASSWORD
environment variable.

Examples:
  # List all data sources
  qwctl datasource list

  # Register a MySQL backend
  qwctl datasource create --name orders-db --driver mysql \
    --server db.internal --port 3306 --database orders --username watch

  # Check connectivity
  qwctl datasource probe --id <source-id>`,
}

// datasourceListCmd lists registered data sources
var datasourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List data sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		sources, err := store.DataSources().List(context.Background())
		if err != nil {
			return fmt.Errorf("list data sources: %w", err)
		}

		if len(sources) == 0 {
			fmt.Println("No data sources found.")
			return nil
		}

		fmt.Printf("\n%-36s  %-20s  %-10s  %-28s  %s\n",
			"ID", "NAME", "DRIVER", "ADDRESS", "DATABASE")
		fmt.Println(strings.Repeat("-", 110))

		for _, ds := range sources {
			fmt.Printf("%-36s  %-20s  %-10s  %-28s  %s\n",
				ds.ID,
				truncate(ds.Name, 20),
				ds.Driver,
				truncate(ds.Addr(), 28),
				ds.Database,
			)
		}
		fmt.Printf("\nTotal: %d data source(s)\n", len(sources))

		return nil
	},
}

// datasourceCreateCmd registers a new data source
var datasourceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a data source",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dsName == "" {
			return fmt.Errorf("--name is required")
		}
		driver, err := models.ParseDriver(dsDriver)
		if err != nil {
			return err
		}
		if dsServer == "" {
			return fmt.Errorf("--server is required")
		}
		if dsPort <= 0 || dsPort > 65535 {
			return fmt.Errorf("--port %d out of range", dsPort)
		}

		password := dsPassword
		if password == "" {
			password = os.Getenv("QUERYWATCH_DS_PASSWORD")
		}

		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		existing, err := store.DataSources().GetByName(ctx, dsName)
		if err != nil {
			return fmt.Errorf("check name: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("data source %q already exists", dsName)
		}

		now := time.Now()
		ds := &models.DataSource{
			ID:          uuid.New().String(),
			Name:        dsName,
			DisplayName: dsDisplayName,
			Driver:      driver,
			Server:      dsServer,
			Port:        dsPort,
			Database:    dsDatabase,
			Username:    dsUsername,
			Password:    password,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := store.DataSources().Create(ctx, ds); err != nil {
			return fmt.Errorf("create data source: %w", err)
		}

		fmt.Printf("Data source created: %s (%s)\n", ds.Name, ds.ID)
		return nil
	},
}

// datasourceProbeCmd checks live connectivity
var datasourceProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check connectivity to a data source",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dsID == "" {
			return fmt.Errorf("--id is required")
		}

		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		ds, err := store.DataSources().GetByID(ctx, dsID)
		if err != nil {
			return fmt.Errorf("get data source: %w", err)
		}
		if ds == nil {
			return fmt.Errorf("data source %s not found", dsID)
		}

		if err := source.NewClient(0).Probe(ctx, ds); err != nil {
			return err
		}

		fmt.Printf("OK: %s (%s) is reachable\n", ds.Name, ds.Addr())
		return nil
	},
}

// datasourceDeleteCmd removes a data source
var datasourceDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a data source",
	Long: `Delete a data source.

Alerts referencing the source are kept; their next execution records a
broken outcome.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dsID == "" {
			return fmt.Errorf("--id is required")
		}

		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DataSources().Delete(context.Background(), dsID); err != nil {
			return fmt.Errorf("delete data source: %w", err)
		}

		fmt.Printf("Data source deleted: %s\n", dsID)
		return nil
	},
}

func init() {
	datasourceCreateCmd.Flags().StringVar(&dsName, "name", "", "unique data source name")
	datasourceCreateCmd.Flags().StringVar(&dsDisplayName, "display-name", "", "human-friendly name")
	datasourceCreateCmd.Flags().StringVar(&dsDriver, "driver", "", "driver (mysql, postgres, clickhouse)")
	datasourceCreateCmd.Flags().StringVar(&dsServer, "server", "", "backend host")
	datasourceCreateCmd.Flags().IntVar(&dsPort, "port", 0, "backend port")
	datasourceCreateCmd.Flags().StringVar(&dsDatabase, "database", "", "database name")
	datasourceCreateCmd.Flags().StringVar(&dsUsername, "username", "", "connection username")
	datasourceCreateCmd.Flags().StringVar(&dsPassword, "password", "", "connection password")

	datasourceProbeCmd.Flags().StringVar(&dsID, "id", "", "data source id")
	datasourceDeleteCmd.Flags().StringVar(&dsID, "id", "", "data source id")

	datasourceCmd.AddCommand(datasourceListCmd)
	datasourceCmd.AddCommand(datasourceCreateCmd)
	datasourceCmd.AddCommand(datasourceProbeCmd)
	datasourceCmd.AddCommand(datasourceDeleteCmd)
	rootCmd.AddCommand(datasourceCmd)
}
