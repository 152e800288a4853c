package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/stakeops/orchestrator/internal/control"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run one dispatch pass over pending root transactions",
	Run:   runDispatch,
}

func init() {
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	app, err := control.NewOrchestrator(controlConfig(cfg, true))
	if err != nil {
		slog.Error("Failed to initialize orchestrator", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := app.RunDispatcher(ctx); err != nil {
		slog.Error("Dispatch pass failed", "error", err)
		os.Exit(1)
	}
	app.WaitForRuns()

	_ = app.Stop(ctx)
}
