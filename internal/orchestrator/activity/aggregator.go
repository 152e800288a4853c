package activity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stakeops/orchestrator/internal/core/domain"
	"github.com/stakeops/orchestrator/internal/infra/storage"
	"github.com/stakeops/orchestrator/internal/orchestrator/metrics"
)

// Result is the outcome of one aggregator invocation.
type Result struct {
	ActivityID uint64
	Status     domain.ActivityStatus
	Skipped    bool
	Reason     string
	Outcomes   []Outcome
}

// Aggregator executes all root transactions of an activity in parallel and
// persists the rolled-up status once every execution reaches a terminal
// outcome.
type Aggregator struct {
	activities storage.ActivityRepository
	txs        storage.TransactionRepository
	runner     Runner
	log        *slog.Logger
}

// New creates an aggregator.
func New(activities storage.ActivityRepository, txs storage.TransactionRepository, runner Runner) *Aggregator {
	return &Aggregator{
		activities: activities,
		txs:        txs,
		runner:     runner,
		log:        slog.Default().With("component", "aggregator"),
	}
}

// Run executes the activity with the given id.
func (a *Aggregator) Run(ctx context.Context, activityID uint64) (*Result, error) {
	act, err := a.activities.Get(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("load activity %d: %w", activityID, err)
	}

	strategy, ok := strategies[act.Type]
	if !ok {
		// Unknown type means nothing to do, not a fault.
		a.log.Info("no aggregation strategy for activity type", "activity", activityID, "type", act.Type)
		return &Result{
			ActivityID: activityID,
			Status:     act.Status,
			Skipped:    true,
			Reason:     fmt.Sprintf("no aggregation strategy for type %q", act.Type),
		}, nil
	}

	txs, err := a.txs.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("list transactions of activity %d: %w", activityID, err)
	}

	var roots []*domain.Transaction
	for _, tx := range txs {
		if tx.IsRoot() {
			roots = append(roots, tx)
		}
	}
	a.log.Info("starting activity roots", "activity", activityID, "roots", len(roots))

	// Fan out and wait for every root; partial failures don't cancel
	// siblings.
	outcomes := joinAll(ctx, a.runner, roots, "activity")

	// A clean run can still have verified an on-chain failure, so the
	// roll-up reads each root's stored status rather than trusting the run
	// error alone.
	for i := range outcomes {
		tx, err := a.txs.Get(ctx, outcomes[i].TxID)
		if err != nil {
			if outcomes[i].Err == nil {
				outcomes[i].Err = fmt.Errorf("reload transaction %d: %w", outcomes[i].TxID, err)
			}
			continue
		}
		outcomes[i].Status = tx.Status
	}

	status := strategy.Aggregate(outcomes)
	if err := a.activities.Update(ctx, activityID, domain.ActivityPatch{Status: &status}); err != nil {
		return nil, fmt.Errorf("persist roll-up for activity %d: %w", activityID, err)
	}
	metrics.ActivityRollups.WithLabelValues(string(status)).Inc()
	a.log.Info("activity roll-up persisted", "activity", activityID, "status", status)

	return &Result{
		ActivityID: activityID,
		Status:     status,
		Outcomes:   outcomes,
	}, nil
}
