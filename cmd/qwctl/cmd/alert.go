package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/brisk-orange-fox/querywatch/internal/alerting"
	"github.com/brisk-orange-fox/querywatch/internal/models"
	"github.com/brisk-orange-fox/querywatch/internal/source"
)

var (
	alertID      string
	alertContext string
	execTimeout  time.Duration
)

// alertCmd represents the alert command group
var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Alert management commands",
	Long: `Commands for inspecting and running QueryWatch alerts.

Examples:
  # List all alerts
  qwctl alert list

  # List alerts in one context
  qwctl alert list --context billing

  # Run an alert now
  qwctl alert run --id 4f9f...

  # Show an alert's history ledger
  qwctl alert history --id 4f9f...`,
}

// alertListCmd lists alerts with their current status
var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		var alerts []*models.Alert
		if alertContext != "" {
			alerts, err = store.Alerts().ListByContext(ctx, alertContext)
		} else {
			alerts, err = store.Alerts().List(ctx)
		}
		if err != nil {
			return fmt.Errorf("list alerts: %w", err)
		}

		if len(alerts) == 0 {
			fmt.Println("No alerts found.")
			return nil
		}

		fmt.Printf("\n%-36s  %-24s  %-12s  %-9s  %s\n",
			"ID", "NAME", "CONTEXT", "THRESHOLD", "STATUS")
		fmt.Println(strings.Repeat("-", 110))

		for _, a := range alerts {
			fmt.Printf("%-36s  %-24s  %-12s  %-9d  %s\n",
				a.ID,
				truncate(a.Name, 24),
				truncate(a.Context, 12),
				a.Threshold,
				a.StatusLabel(),
			)
		}
		fmt.Printf("\nTotal: %d alert(s)\n", len(alerts))

		return nil
	},
}

// alertRunCmd executes an alert immediately
var alertRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an alert now and print the outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertID == "" {
			return fmt.Errorf("--id is required")
		}

		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		service := alerting.NewService(store, source.NewClient(0), execTimeout)
		outcome, err := service.Run(context.Background(), alertID)
		if err != nil {
			return fmt.Errorf("run alert: %w", err)
		}

		fmt.Printf("Status:   %s\n", outcome.Status)
		if outcome.ResultCount != nil {
			fmt.Printf("Rows:     %d\n", *outcome.ResultCount)
		}
		if outcome.Error != "" {
			fmt.Printf("Error:    %s\n", outcome.Error)
		}
		fmt.Printf("Duration: %v\n", outcome.Duration.Round(time.Millisecond))

		return nil
	},
}

// alertHistoryCmd prints the ledger for one alert
var alertHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show an alert's history ledger, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertID == "" {
			return fmt.Errorf("--id is required")
		}

		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.History().ListByAlert(context.Background(), alertID)
		if err != nil {
			return fmt.Errorf("list history: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No history found.")
			return nil
		}

		for _, e := range entries {
			marker := " "
			if e.IsCurrent {
				marker = "*"
			}
			fmt.Printf("%s #%d  %-17s  %s\n",
				marker, e.Seq, e.Kind, e.CreatedAt.Format("2006-01-02 15:04:05"))
			if e.Kind == models.EntryExecution {
				if e.Error != "" {
					fmt.Printf("     %s: %s\n", e.Status, e.Error)
				} else if e.ResultCount != nil {
					fmt.Printf("     %s (%d rows)\n", e.Status, *e.ResultCount)
				}
			}
			for _, d := range e.Diffs {
				fmt.Printf("     %s: %q -> %q\n", d.Field, d.Old, d.New)
			}
		}

		return nil
	},
}

func init() {
	alertListCmd.Flags().StringVar(&alertContext, "context", "", "filter by context tag")

	alertRunCmd.Flags().StringVar(&alertID, "id", "", "alert id")
	alertRunCmd.Flags().DurationVar(&execTimeout, "timeout", 30*time.Second, "execution timeout")

	alertHistoryCmd.Flags().StringVar(&alertID, "id", "", "alert id")

	alertCmd.AddCommand(alertListCmd)
	alertCmd.AddCommand(alertRunCmd)
	alertCmd.AddCommand(alertHistoryCmd)
	rootCmd.AddCommand(alertCmd)
}
