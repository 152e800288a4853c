package cli

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stakeops/orchestrator/internal/control"
)

var activityCmd = &cobra.Command{
	Use:   "activity <id>",
	Short: "Execute all root transactions of an activity and persist its roll-up",
	Args:  cobra.ExactArgs(1),
	Run:   runActivity,
}

func init() {
	rootCmd.AddCommand(activityCmd)
}

func runActivity(cmd *cobra.Command, args []string) {
	activityID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		slog.Error("Invalid activity id", "arg", args[0])
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
	result, err := app.RunActivity(ctx, activityID)
	if err != nil {
		slog.Error("Activity run failed", "activity", activityID, "error", err)
		os.Exit(1)
	}

	if result.Skipped {
		slog.Info("Activity skipped", "activity", activityID, "reason", result.Reason)
	} else {
		slog.Info("Activity completed", "activity", activityID, "status", result.Status)
	}

	_ = app.Stop(ctx)
}
