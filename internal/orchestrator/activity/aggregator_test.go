package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stakeops/orchestrator/internal/core/domain"
	"github.com/stakeops/orchestrator/internal/infra/chain"
	"github.com/stakeops/orchestrator/internal/infra/storage/memory"
	"github.com/stakeops/orchestrator/internal/orchestrator/executor"
	"github.com/stakeops/orchestrator/internal/orchestrator/runner"
)

// scriptedRunner resolves each transaction per a fixed outcome table.
type scriptedRunner struct {
	mu       sync.Mutex
	outcomes map[uint64]error
	started  []uint64
}

func (r *scriptedRunner) StartWait(ctx context.Context, tx *domain.Transaction, trigger string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, tx.ID)
	return r.outcomes[tx.ID]
}

func depOn(id uint64) *uint64 { return &id }

func seedActivity(store *memory.MemoryStorage, typ domain.ActivityType) *domain.Activity {
	act := &domain.Activity{ID: 1, Type: typ, Status: domain.ActivityStatusPending, CreatedAt: time.Now()}
	store.PutActivity(act)
	return act
}

func seedTxs(store *memory.MemoryStorage, activityID uint64, txs ...*domain.Transaction) {
	for _, tx := range txs {
		tx.ActivityID = &activityID
		tx.Status = domain.TxStatusPending
		tx.CreatedAt = time.Now()
		store.PutTransaction(tx)
	}
}

func TestRun_AllRootsSucceed(t *testing.T) {
	store := memory.NewMemoryStorage()
	seedActivity(store, domain.ActivityTypeStake)
	seedTxs(store, 1,
		&domain.Transaction{ID: 10},
		&domain.Transaction{ID: 11},
		&domain.Transaction{ID: 12},
	)

	runner := &scriptedRunner{outcomes: map[uint64]error{}}
	agg := New(memory.NewActivityRepo(store), memory.NewTxRepo(store), runner)

	res, err := agg.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Status != domain.ActivityStatusSuccess {
		t.Errorf("Expected success roll-up, got %s", res.Status)
	}
	if len(res.Outcomes) != 3 {
		t.Errorf("Expected 3 outcomes, got %d", len(res.Outcomes))
	}

	act, _ := memory.NewActivityRepo(store).Get(context.Background(), 1)
	if act.Status != domain.ActivityStatusSuccess {
		t.Errorf("Expected persisted success, got %s", act.Status)
	}
}

func TestRun_OneFailureFailsActivity(t *testing.T) {
	store := memory.NewMemoryStorage()
	seedActivity(store, domain.ActivityTypeUnstake)
	seedTxs(store, 1,
		&domain.Transaction{ID: 10},
		&domain.Transaction{ID: 11},
		&domain.Transaction{ID: 12},
	)

	runner := &scriptedRunner{outcomes: map[uint64]error{
		11: errors.New("verify failed"),
	}}
	agg := New(memory.NewActivityRepo(store), memory.NewTxRepo(store), runner)

	res, err := agg.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Status != domain.ActivityStatusFailure {
		t.Errorf("Expected failure roll-up, got %s", res.Status)
	}

	// Siblings must still have run to completion despite the failure.
	if len(runner.started) != 3 {
		t.Errorf("Expected all 3 roots started, got %d", len(runner.started))
	}

	act, _ := memory.NewActivityRepo(store).Get(context.Background(), 1)
	if act.Status != domain.ActivityStatusFailure {
		t.Errorf("Expected persisted failure, got %s", act.Status)
	}
}

func TestRun_DependantsAreNotStartedDirectly(t *testing.T) {
	store := memory.NewMemoryStorage()
	seedActivity(store, domain.ActivityTypeClaim)
	seedTxs(store, 1,
		&domain.Transaction{ID: 10},
		&domain.Transaction{ID: 11, DependsOn: depOn(10)},
	)

	runner := &scriptedRunner{outcomes: map[uint64]error{}}
	agg := New(memory.NewActivityRepo(store), memory.NewTxRepo(store), runner)

	if _, err := agg.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(runner.started) != 1 || runner.started[0] != 10 {
		t.Errorf("Expected only the root to be started, got %v", runner.started)
	}
}

func TestRun_UnknownTypeIsSkippedWithoutError(t *testing.T) {
	store := memory.NewMemoryStorage()
	store.PutActivity(&domain.Activity{ID: 1, Type: "governance_vote", Status: domain.ActivityStatusPending, CreatedAt: time.Now()})
	seedTxs(store, 1, &domain.Transaction{ID: 10})

	runner := &scriptedRunner{outcomes: map[uint64]error{}}
	agg := New(memory.NewActivityRepo(store), memory.NewTxRepo(store), runner)

	res, err := agg.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Expected no error for unknown type, got %v", err)
	}
	if !res.Skipped {
		t.Error("Expected skipped result")
	}
	if len(runner.started) != 0 {
		t.Errorf("Expected no executions for unknown type, got %v", runner.started)
	}

	act, _ := memory.NewActivityRepo(store).Get(context.Background(), 1)
	if act.Status != domain.ActivityStatusPending {
		t.Errorf("Expected status untouched, got %s", act.Status)
	}
}

func TestRun_MissingActivity(t *testing.T) {
	store := memory.NewMemoryStorage()
	agg := New(memory.NewActivityRepo(store), memory.NewTxRepo(store), &scriptedRunner{})

	if _, err := agg.Run(context.Background(), 99); err == nil {
		t.Fatal("Expected error for missing activity")
	}
}

// stubChain confirms every submission and resolves results per hash.
type stubChain struct {
	mu      sync.Mutex
	height  uint64
	results map[string]*chain.TxResult
}

func (c *stubChain) CurrentHeight(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height++
	return c.height, nil
}

func (c *stubChain) Submit(ctx context.Context, payload string) (*chain.SubmitResult, error) {
	return &chain.SubmitResult{Hash: "hash-" + payload}, nil
}

func (c *stubChain) GetTxResult(ctx context.Context, hash string) (*chain.TxResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results[hash], nil
}

// A root that completes its run cleanly but verifies with a nonzero code must
// still fail the roll-up, so this goes through the real executor and
// registry instead of a scripted runner.
func TestRun_OnChainFailureFailsActivity(t *testing.T) {
	store := memory.NewMemoryStorage()
	seedActivity(store, domain.ActivityTypeStake)
	seedTxs(store, 1,
		&domain.Transaction{ID: 10, SignedPayload: "0xaa"},
		&domain.Transaction{ID: 11, SignedPayload: "0xbb"},
		&domain.Transaction{ID: 12, SignedPayload: "0xcc"},
	)

	gw := &stubChain{results: map[string]*chain.TxResult{
		"hash-0xaa": {Success: true, Code: 0},
		"hash-0xbb": {Success: false, Code: 5},
		"hash-0xcc": {Success: true, Code: 0},
	}}

	txRepo := memory.NewTxRepo(store)
	exec := executor.New(txRepo, gw, nil, executor.Config{
		PollInterval:      time.Millisecond,
		ConfirmTimeout:    time.Second,
		HeartbeatInterval: time.Hour,
		StepTimeout:       time.Second,
		RetryDelay:        time.Millisecond,
	})
	reg := runner.New(exec, runner.NewMemoryLeases(), runner.Config{})
	exec.SetStarter(reg)
	defer reg.Close()

	agg := New(memory.NewActivityRepo(store), txRepo, reg)

	res, err := agg.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Status != domain.ActivityStatusFailure {
		t.Errorf("Expected failure roll-up for on-chain failure, got %s", res.Status)
	}

	failed, _ := txRepo.Get(context.Background(), 11)
	if failed.Status != domain.TxStatusFailure {
		t.Errorf("Expected transaction 11 stored as failure, got %s", failed.Status)
	}
	for _, id := range []uint64{10, 12} {
		tx, _ := txRepo.Get(context.Background(), id)
		if tx.Status != domain.TxStatusSuccess {
			t.Errorf("Expected transaction %d stored as success, got %s", id, tx.Status)
		}
	}

	act, _ := memory.NewActivityRepo(store).Get(context.Background(), 1)
	if act.Status != domain.ActivityStatusFailure {
		t.Errorf("Expected persisted failure, got %s", act.Status)
	}
}

func TestAllOrNothingStrategy(t *testing.T) {
	s := allOrNothing{}

	if got := s.Aggregate([]Outcome{{TxID: 1}, {TxID: 2}}); got != domain.ActivityStatusSuccess {
		t.Errorf("Expected success for clean outcomes, got %s", got)
	}
	if got := s.Aggregate([]Outcome{{TxID: 1}, {TxID: 2, Err: errors.New("boom")}}); got != domain.ActivityStatusFailure {
		t.Errorf("Expected failure when any outcome failed, got %s", got)
	}
	if got := s.Aggregate([]Outcome{{TxID: 1, Status: domain.TxStatusSuccess}, {TxID: 2, Status: domain.TxStatusFailure}}); got != domain.ActivityStatusFailure {
		t.Errorf("Expected failure for verified on-chain failure, got %s", got)
	}
	if got := s.Aggregate([]Outcome{{TxID: 1, Status: domain.TxStatusNotExecuted}}); got != domain.ActivityStatusFailure {
		t.Errorf("Expected failure for not_executed outcome, got %s", got)
	}
	if got := s.Aggregate(nil); got != domain.ActivityStatusSuccess {
		t.Errorf("Expected success for empty outcome set, got %s", got)
	}
}
