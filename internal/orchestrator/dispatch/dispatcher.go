package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/stakeops/orchestrator/internal/infra/storage"
	"github.com/stakeops/orchestrator/internal/orchestrator/executor"
	"github.com/stakeops/orchestrator/internal/orchestrator/metrics"
)

// Config holds dispatcher settings.
type Config struct {
	Interval time.Duration
}

// Dispatcher periodically lists pending transactions and schedules an
// executor run for each root. It knows nothing about dependency edges beyond
// "start at roots"; dependants are reached through the executor's cascade
// step once their parent resolves.
type Dispatcher struct {
	txs      storage.TransactionRepository
	starter  executor.Starter
	interval time.Duration
	running  atomic.Bool
	log      *slog.Logger
}

// New creates a dispatcher.
func New(txs storage.TransactionRepository, starter executor.Starter, cfg Config) *Dispatcher {
	interval := cfg.Interval
	if interval == 0 {
		interval = time.Minute
	}
	return &Dispatcher{
		txs:      txs,
		starter:  starter,
		interval: interval,
		log:      slog.Default().With("component", "dispatcher"),
	}
}

// Run executes one dispatch pass.
func (d *Dispatcher) Run(ctx context.Context) error {
	pending, err := d.txs.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending transactions: %w", err)
	}
	metrics.PendingTransactions.Set(float64(len(pending)))

	started := 0
	for _, tx := range pending {
		if !tx.IsRoot() {
			// Dependants start from their parent's cascade, never here.
			continue
		}
		d.starter.Start(ctx, tx, "dispatcher")
		started++
	}

	d.log.Info("dispatch pass complete", "pending", len(pending), "roots_started", started)
	return nil
}

// RunLoop runs dispatch passes on a fixed interval until ctx is cancelled.
func (d *Dispatcher) RunLoop(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already running")
	}
	defer d.running.Store(false)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// One pass up front so a restart picks up backlog immediately.
	if err := d.Run(ctx); err != nil {
		d.log.Error("dispatch pass failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := d.Run(ctx); err != nil {
				d.log.Error("dispatch pass failed", "error", err)
			}
		}
	}
}
