package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stakeops/orchestrator/internal/core/config"
	"github.com/stakeops/orchestrator/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the transaction and activity backlog",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// requireDatabase rejects configs without a database URL. The backlog lives
// in the shared database; the in-memory backend is per-process and has
// nothing to inspect from a separate CLI invocation.
func requireDatabase(cfg *config.AppConfig) error {
	if cfg.Database.URL == "" {
		return errors.New("status requires a configured database url")
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := requireDatabase(cfg); err != nil {
		slog.Error("Cannot show backlog", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM transactions GROUP BY status
		UNION ALL
		SELECT 'activity:' || status, COUNT(*) FROM activities GROUP BY status
	`)
	if err != nil {
		slog.Error("Failed to query backlog", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STATUS\tCOUNT")

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\n", status, count)
	}
	_ = w.Flush()
}
