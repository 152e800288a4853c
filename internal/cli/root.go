package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/stakeops/orchestrator/internal/control"
	"github.com/stakeops/orchestrator/internal/core/config"
	"github.com/stakeops/orchestrator/internal/orchestrator/dispatch"
	"github.com/stakeops/orchestrator/internal/orchestrator/executor"
	"github.com/stakeops/orchestrator/internal/orchestrator/runner"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Staking transaction execution orchestrator",
	Long:  `Orchestrator submits signed staking transactions, waits for on-chain confirmation, verifies results and cascades execution to dependent transactions.`,
	Run:   runService,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig loads .env, parses the YAML config and initializes logging.
func loadConfig() (*config.AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})))

	return cfg, nil
}

// controlConfig maps the file config onto the application config. Unset
// fields keep their zero values; each component fills in its own defaults.
func controlConfig(cfg *config.AppConfig, oneShot bool) control.Config {
	return control.Config{
		Port:     cfg.Server.Port,
		Chain:    cfg.Chain,
		Redis:    cfg.Redis,
		Database: cfg.Database,
		Executor: executor.Config{
			PollInterval:      time.Duration(cfg.Executor.PollInterval),
			ConfirmTimeout:    time.Duration(cfg.Executor.ConfirmTimeout),
			HeartbeatInterval: time.Duration(cfg.Executor.HeartbeatInterval),
			StepTimeout:       time.Duration(cfg.Executor.StepTimeout),
			RetryDelay:        time.Duration(cfg.Executor.RetryDelay),
			SubmitAttempts:    cfg.Executor.SubmitAttempts,
			VerifyAttempts:    cfg.Executor.VerifyAttempts,
			CascadeOnFailure:  cfg.Executor.CascadeOnFailure,
		},
		Runner: runner.Config{
			Workers:    cfg.Runner.Workers,
			MaxRetries: cfg.Runner.MaxRetries,
			LeaseTTL:   time.Duration(cfg.Runner.LeaseTTL),
		},
		Dispatcher: dispatch.Config{
			Interval: time.Duration(cfg.Dispatcher.Interval),
		},
		ProviderPoll:   time.Duration(cfg.ProviderPoll),
		DispatchLoop:   !oneShot,
		ProviderPolls:  !oneShot,
		HealthDisabled: oneShot,
	}
}

func runService(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	app, err := control.NewOrchestrator(controlConfig(cfg, false))
	if err != nil {
		slog.Error("Failed to initialize orchestrator", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Orchestrator stopped gracefully")
}
