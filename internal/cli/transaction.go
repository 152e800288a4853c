package cli

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stakeops/orchestrator/internal/control"
)

var transactionCmd = &cobra.Command{
	Use:   "transaction <id>",
	Short: "Execute a single transaction to a terminal outcome",
	Args:  cobra.ExactArgs(1),
	Run:   runTransaction,
}

func init() {
	rootCmd.AddCommand(transactionCmd)
}

func runTransaction(cmd *cobra.Command, args []string) {
	txID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		slog.Error("Invalid transaction id", "arg", args[0])
		os.Exit(1)
	}

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
	if err := app.RunTransaction(ctx, txID); err != nil {
		slog.Error("Transaction run failed", "tx", txID, "error", err)
		os.Exit(1)
	}
	app.WaitForRuns()

	slog.Info("Transaction run finished", "tx", txID)
	_ = app.Stop(ctx)
}
