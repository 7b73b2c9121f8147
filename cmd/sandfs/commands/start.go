package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/sandfs/internal/logger"
	"github.com/marmos91/sandfs/pkg/config"
	"github.com/marmos91/sandfs/pkg/gc"
	sandServer "github.com/marmos91/sandfs/pkg/server"
	"github.com/marmos91/sandfs/pkg/users"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the SandFS server",
	Long: `Start the SandFS server with the specified configuration.

The user store must have been initialized with 'sandfs init' first; the
server refuses to start against a missing or corrupt user store.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/sandfs/config.yaml.

Examples:
  # Start with default config location
  sandfs start

  # Start with custom config file
  sandfs start --config /etc/sandfs/config.yaml

  # Start with environment variable overrides
  SANDFS_LOGGING_LEVEL=DEBUG sandfs start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("SandFS - Sandboxed multi-user file server")
	logger.Info("Log level: %s (format: %s)", cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", getConfigSource(GetConfigFile()))

	// Initialize metrics FIRST so collectors exist before the store and
	// adapters are wired to them
	metricsResult := config.InitializeMetrics(cfg)

	store, err := config.CreateUserStore(ctx, cfg, metricsResult.UserStoreMetrics)
	if err != nil {
		return fmt.Errorf("failed to create user store: %w", err)
	}

	if err := store.Load(ctx); err != nil {
		_ = store.Close()
		if errors.Is(err, users.ErrNotInitialized) {
			return fmt.Errorf("%w\n\nInitialize the user store first:\n  sandfs init --admin-user <name> --admin-password <password>", err)
		}
		return fmt.Errorf("failed to load user store: %w", err)
	}
	logger.Info("User store loaded: backend=%s users=%d session_root=%s",
		cfg.Users.Backend, store.Count(), store.SessionRoot())

	srv := sandServer.New(store, cfg.Server.ShutdownTimeout)

	if metricsResult.Server != nil {
		logger.Info("Metrics enabled on port %d", cfg.Server.Metrics.Port)
		srv.SetMetricsServer(metricsResult.Server)
	} else {
		logger.Info("Metrics collection disabled")
	}

	collector := gc.NewCollector(store, cfg.Server.GC)
	if cfg.Server.GC.Enabled {
		// Sweep once before accepting connections; leftovers from a crash
		// are removed before anyone can register the same name.
		stats, err := collector.RunNow(ctx)
		if err != nil {
			logger.Warn("Startup sandbox garbage collection failed: %v", err)
		} else {
			logger.Info("Startup sandbox garbage collection: %s", stats.Summary())
		}
	}
	srv.SetCollector(collector)

	adapters, err := config.CreateAdapters(cfg, metricsResult.LineMetrics)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to create adapters: %w", err)
	}

	for _, adapter := range adapters {
		if err := srv.AddAdapter(adapter); err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to add %s adapter: %w", adapter.Protocol(), err)
		}
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Server shutdown error: %v", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error: %v", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}
