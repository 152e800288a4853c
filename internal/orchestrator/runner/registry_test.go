package runner

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
)

// gateway whose CurrentHeight blocks until release is closed, to hold runs
// before their first submission. Once released it reports a strictly
// increasing height so confirmation waits complete.
type blockingGateway struct {
	mu          sync.Mutex
	release     chan struct{}
	height      uint64
	submitCalls int
}

func newBlockingGateway() *blockingGateway {
	return &blockingGateway{release: make(chan struct{}), height: 99}
}

func (g *blockingGateway) CurrentHeight(ctx context.Context) (uint64, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.height++
	return g.height, nil
}

func (g *blockingGateway) Submit(ctx context.Context, payload string) (*chain.SubmitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitCalls++
	return &chain.SubmitResult{Hash: "H1"}, nil
}

func (g *blockingGateway) GetTxResult(ctx context.Context, hash string) (*chain.TxResult, error) {
	return &chain.TxResult{Success: true, Code: 0}, nil
}

type failingGateway struct {
	mu          sync.Mutex
	submitCalls int
}

func (g *failingGateway) CurrentHeight(ctx context.Context) (uint64, error) { return 10, nil }

func (g *failingGateway) Submit(ctx context.Context, payload string) (*chain.SubmitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitCalls++
	return nil, errors.New("connection refused")
}

func (g *failingGateway) GetTxResult(ctx context.Context, hash string) (*chain.TxResult, error) {
	return nil, errors.New("unreachable")
}

func fastExecConfig() executor.Config {
	return executor.Config{
		PollInterval:      time.Millisecond,
		ConfirmTimeout:    time.Second,
		HeartbeatInterval: time.Hour,
		StepTimeout:       time.Second,
		RetryDelay:        time.Millisecond,
	}
}

func seed(store *memory.MemoryStorage, id uint64) *domain.Transaction {
	tx := &domain.Transaction{
		ID:            id,
		Status:        domain.TxStatusPending,
		SignedPayload: "0xabc",
		CreatedAt:     time.Now(),
	}
	store.PutTransaction(tx)
	return tx
}

func TestStart_DedupWhileRunning(t *testing.T) {
	store := memory.NewMemoryStorage()
	repo := memory.NewTxRepo(store)
	tx := seed(store, 1)

	gw := newBlockingGateway()
	exec := executor.New(repo, gw, nil, fastExecConfig())
	reg := New(exec, NewMemoryLeases(), Config{})
	defer reg.Close()

	// All three starts land while the first run is parked in the gateway;
	// the registry must collapse them into a single run.
	reg.Start(context.Background(), tx, "test")
	reg.Start(context.Background(), tx, "test")
	reg.Start(context.Background(), tx, "test")
	time.Sleep(20 * time.Millisecond)

	close(gw.release)
	reg.Wait()

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.submitCalls != 1 {
		t.Errorf("Expected exactly 1 submission for duplicate starts, got %d", gw.submitCalls)
	}
}

func TestStartWait_SucceededRunIsSkipped(t *testing.T) {
	store := memory.NewMemoryStorage()
	repo := memory.NewTxRepo(store)
	tx := seed(store, 2)

	gw := newBlockingGateway()
	close(gw.release)
	exec := executor.New(repo, gw, nil, fastExecConfig())
	reg := New(exec, NewMemoryLeases(), Config{})
	defer reg.Close()

	if err := reg.StartWait(context.Background(), tx, "test"); err != nil {
		t.Fatalf("StartWait failed: %v", err)
	}
	if err := reg.StartWait(context.Background(), tx, "test"); err != nil {
		t.Fatalf("Second StartWait failed: %v", err)
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.submitCalls != 1 {
		t.Errorf("Expected 1 submission, got %d", gw.submitCalls)
	}
}

func TestStartWait_FailedRunRetriesUpToBudget(t *testing.T) {
	store := memory.NewMemoryStorage()
	repo := memory.NewTxRepo(store)
	tx := seed(store, 3)

	gw := &failingGateway{}
	cfg := fastExecConfig()
	cfg.SubmitAttempts = 1
	exec := executor.New(repo, gw, nil, cfg)
	reg := New(exec, NewMemoryLeases(), Config{MaxRetries: 5})
	defer reg.Close()

	for i := 0; i < 10; i++ {
		if err := reg.StartWait(context.Background(), tx, "test"); err == nil {
			t.Fatalf("Expected failure on attempt %d", i+1)
		}
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.submitCalls != 5 {
		t.Errorf("Expected retry budget of 5 runs, got %d", gw.submitCalls)
	}
}

func TestStartWait_FatalRunIsNotRetried(t *testing.T) {
	store := memory.NewMemoryStorage()
	repo := memory.NewTxRepo(store)
	// Empty payload is a data error.
	tx := &domain.Transaction{ID: 4, Status: domain.TxStatusPending, CreatedAt: time.Now()}
	store.PutTransaction(tx)

	gw := &failingGateway{}
	exec := executor.New(repo, gw, nil, fastExecConfig())
	reg := New(exec, NewMemoryLeases(), Config{MaxRetries: 5})
	defer reg.Close()

	for i := 0; i < 3; i++ {
		err := reg.StartWait(context.Background(), tx, "test")
		var dataErr *executor.DataError
		if !errors.As(err, &dataErr) {
			t.Fatalf("Expected DataError, got %v", err)
		}
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.submitCalls != 0 {
		t.Errorf("Expected no submissions for fatal run, got %d", gw.submitCalls)
	}
}

func TestCancel_AbortedRunCanBeRestarted(t *testing.T) {
	store := memory.NewMemoryStorage()
	repo := memory.NewTxRepo(store)
	tx := seed(store, 5)

	gw := newBlockingGateway()
	exec := executor.New(repo, gw, nil, fastExecConfig())
	reg := New(exec, NewMemoryLeases(), Config{})
	defer reg.Close()

	reg.Start(context.Background(), tx, "test")
	time.Sleep(20 * time.Millisecond)

	if !reg.Cancel(tx.RunKey()) {
		t.Fatal("Expected Cancel to find the running run")
	}
	reg.Wait()

	stored, _ := repo.Get(context.Background(), 5)
	if stored.Status != domain.TxStatusPending {
		t.Errorf("Expected status unchanged after cancel, got %s", stored.Status)
	}

	// A cancelled run is forgotten; a new start resumes from the checkpoint.
	close(gw.release)
	if err := reg.StartWait(context.Background(), tx, "test"); err != nil {
		t.Fatalf("Restart after cancel failed: %v", err)
	}
	stored, _ = repo.Get(context.Background(), 5)
	if stored.Status != domain.TxStatusSuccess {
		t.Errorf("Expected success after restart, got %s", stored.Status)
	}
}

func TestStart_LeasedElsewhereSkips(t *testing.T) {
	store := memory.NewMemoryStorage()
	repo := memory.NewTxRepo(store)
	tx := seed(store, 6)

	leases := NewMemoryLeases()
	if ok, _ := leases.Acquire(context.Background(), tx.RunKey(), "other-process", time.Minute); !ok {
		t.Fatal("Failed to pre-acquire lease")
	}

	gw := newBlockingGateway()
	close(gw.release)
	exec := executor.New(repo, gw, nil, fastExecConfig())
	reg := New(exec, leases, Config{})
	defer reg.Close()

	reg.Start(context.Background(), tx, "test")
	reg.Wait()

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.submitCalls != 0 {
		t.Errorf("Expected no submission while leased elsewhere, got %d", gw.submitCalls)
	}
}

func TestMemoryLeases(t *testing.T) {
	leases := NewMemoryLeases()
	ctx := context.Background()

	if ok, _ := leases.Acquire(ctx, "k", "a", time.Minute); !ok {
		t.Fatal("First acquire should succeed")
	}
	if ok, _ := leases.Acquire(ctx, "k", "b", time.Minute); ok {
		t.Error("Second acquire by another owner should fail")
	}
	if ok, _ := leases.Heartbeat(ctx, "k", "a", time.Minute); !ok {
		t.Error("Heartbeat by owner should succeed")
	}
	if ok, _ := leases.Heartbeat(ctx, "k", "b", time.Minute); ok {
		t.Error("Heartbeat by non-owner should fail")
	}
	if err := leases.Release(ctx, "k", "a"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if ok, _ := leases.Acquire(ctx, "k", "b", time.Minute); !ok {
		t.Error("Acquire after release should succeed")
	}
}
