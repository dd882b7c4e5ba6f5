package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/brisk-orange-fox/querywatch/internal/alerting"
	"github.com/brisk-orange-fox/querywatch/internal/api"
	"github.com/brisk-orange-fox/querywatch/internal/api/health"
	"github.com/brisk-orange-fox/querywatch/internal/metrics"
	"github.com/brisk-orange-fox/querywatch/internal/source"
	"github.com/brisk-orange-fox/querywatch/internal/storage"
	"github.com/brisk-orange-fox/querywatch/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "querywatch-server",
	Short: "QueryWatch Server - SQL alert monitoring engine",
	Long: `QueryWatch Server runs named SQL queries against registered data
sources on a schedule or on demand, classifies the results against
per-alert thresholds, and keeps an auditable history of every change.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("querywatch-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags and environment
	if httpAddr != "" {
		cfg.Server.Address = httpAddr
	}
	cfg.Verbose = verbose
	if token := os.Getenv("QUERYWATCH_API_TOKEN"); token != "" {
		cfg.Server.APIToken = token
	}

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Initialize storage
	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Database.Path)

	// Wire the engine
	sources := source.NewClient(cfg.Sources.DialTimeout)
	service := alerting.NewService(store, sources, cfg.Sources.ExecTimeout)
	scheduler := alerting.NewScheduler(service)

	service.OnChange(func() {
		if err := scheduler.Reload(context.Background()); err != nil {
			log.Printf("scheduler reload: %v", err)
		}
	})

	apiServer, err := api.New(&api.Config{
		Address:        cfg.Server.Address,
		APIToken:       cfg.Server.APIToken,
		RateLimitPerIP: cfg.Server.RateLimitPerIP,
		Verbose:        cfg.Verbose,
	}, store, service, sources)
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}

	apiServer.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))
	if cfg.SchedulerEnabled() {
		apiServer.RegisterHealthChecker(health.NewSchedulerChecker(scheduler.Running))
	}

	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	log.Printf("starting querywatch-server %s", config.Version)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return apiServer.Run(ctx)
	})
	if cfg.SchedulerEnabled() {
		g.Go(func() error {
			return scheduler.Start(ctx)
		})
	} else {
		log.Printf("scheduler disabled; alerts run on demand only")
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}
