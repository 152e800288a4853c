package activity

import (
	"context"
	"sync"

	"github.com/stakeops/orchestrator/internal/core/domain"
)

// Runner is the scheduling layer the aggregator fans out over.
type Runner interface {
	StartWait(ctx context.Context, tx *domain.Transaction, trigger string) error
}

// Outcome is one root transaction's terminal execution result. Err carries
// run-level failures (retries exhausted, data errors); Status is the
// transaction's stored status after the run. Both matter: a run that verifies
// an on-chain failure completes cleanly with a nil error.
type Outcome struct {
	TxID   uint64
	Status domain.TxStatus
	Err    error
}

// Failed reports whether the execution ended in any kind of failure, whether
// task-level exhaustion or a verified on-chain failure.
func (o Outcome) Failed() bool {
	if o.Err != nil {
		return true
	}
	return o.Status == domain.TxStatusFailure || o.Status == domain.TxStatusNotExecuted
}

// joinAll starts one executor run per transaction and collects every result.
// No short-circuiting: a failing sibling never cancels the others.
func joinAll(ctx context.Context, runner Runner, txs []*domain.Transaction, trigger string) []Outcome {
	outcomes := make([]Outcome, len(txs))

	var wg sync.WaitGroup
	for i, tx := range txs {
		wg.Add(1)
		go func(i int, tx *domain.Transaction) {
			defer wg.Done()
			outcomes[i] = Outcome{TxID: tx.ID, Err: runner.StartWait(ctx, tx, trigger)}
		}(i, tx)
	}
	wg.Wait()

	return outcomes
}
