package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stakeops/orchestrator/internal/core/domain"
	"github.com/stakeops/orchestrator/internal/orchestrator/executor"
	"github.com/stakeops/orchestrator/internal/orchestrator/metrics"
)

// Config holds scheduling policy.
type Config struct {
	Workers    int
	MaxRetries int
	LeaseTTL   time.Duration
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.Workers == 0 {
		c.Workers = 16
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.LeaseTTL == 0 {
		// Must comfortably exceed the executor's heartbeat interval.
		c.LeaseTTL = 8 * time.Minute
	}
	return c
}

type runState int

const (
	stateRunning runState = iota
	stateSucceeded
	stateFailed
)

// run is one scheduling identity's execution record. done closes when the
// current attempt finishes; err holds the last attempt's outcome.
type run struct {
	state    runState
	failures int
	err      error
	done     chan struct{}
	cancel   context.CancelFunc
}

// Registry schedules executor runs over a bounded worker pool, keyed by each
// transaction's deterministic run key. Starting a key that is running or has
// succeeded is a no-op; a previously failed key may be retried up to
// MaxRetries times. It implements executor.Starter, so cascaded dependant
// starts flow through the same accounting.
type Registry struct {
	exec   *executor.Executor
	leases LeaseStore
	cfg    Config
	log    *slog.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu   sync.Mutex
	runs map[string]*run
	sem  chan struct{}
	wg   sync.WaitGroup
}

// New creates a run registry.
func New(exec *executor.Executor, leases LeaseStore, cfg Config) *Registry {
	cfg = cfg.WithDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		exec:       exec,
		leases:     leases,
		cfg:        cfg,
		log:        slog.Default().With("component", "runner"),
		rootCtx:    ctx,
		rootCancel: cancel,
		runs:       make(map[string]*run),
		sem:        make(chan struct{}, cfg.Workers),
	}
}

// Start schedules an executor run for tx. Fire-and-forget; duplicate starts
// are suppressed. Implements executor.Starter.
func (r *Registry) Start(ctx context.Context, tx *domain.Transaction, trigger string) {
	r.start(tx, trigger)
}

// StartWait schedules a run (or joins the one in flight) and blocks until it
// reaches a terminal outcome.
func (r *Registry) StartWait(ctx context.Context, tx *domain.Transaction, trigger string) error {
	ru := r.start(tx, trigger)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ru.done:
		return ru.err
	}
}

// start registers and launches a run, or returns the existing record for the
// key. The returned run's done channel is guaranteed to close.
func (r *Registry) start(tx *domain.Transaction, trigger string) *run {
	key := tx.RunKey()

	r.mu.Lock()
	if existing, ok := r.runs[key]; ok {
		switch existing.state {
		case stateRunning:
			r.mu.Unlock()
			metrics.DedupHitsTotal.Inc()
			return existing
		case stateSucceeded:
			r.mu.Unlock()
			metrics.DedupHitsTotal.Inc()
			r.log.Debug("run already succeeded, skipping", "key", key)
			return existing
		case stateFailed:
			if existing.failures >= r.cfg.MaxRetries {
				r.mu.Unlock()
				r.log.Warn("run retries exhausted", "key", key, "failures", existing.failures)
				metrics.EscalationsTotal.WithLabelValues("retries_exhausted").Inc()
				return existing
			}
			// Retry of a failed run reuses the record.
		}
	}

	ru := r.runs[key]
	if ru == nil {
		ru = &run{}
		r.runs[key] = ru
	}
	runCtx, cancel := context.WithCancel(r.rootCtx)
	ru.state = stateRunning
	ru.done = make(chan struct{})
	ru.cancel = cancel
	r.mu.Unlock()

	metrics.ExecutorsStarted.WithLabelValues(trigger).Inc()
	r.wg.Add(1)
	go r.execute(runCtx, cancel, key, tx.ID, ru)
	return ru
}

func (r *Registry) execute(ctx context.Context, cancel context.CancelFunc, key string, txID uint64, ru *run) {
	defer r.wg.Done()
	defer cancel()

	r.sem <- struct{}{}
	defer func() { <-r.sem }()

	owner := uuid.NewString()
	acquired, err := r.leases.Acquire(ctx, key, owner, r.cfg.LeaseTTL)
	if err != nil {
		r.log.Error("lease acquire failed", "key", key, "error", err)
	}
	if err == nil && !acquired {
		// Another process owns this run. Not a failure of ours.
		r.log.Info("run leased elsewhere, skipping", "key", key)
		r.finish(key, ru, nil, true)
		return
	}
	defer func() {
		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer releaseCancel()
		_ = r.leases.Release(releaseCtx, key, owner)
	}()

	beat := func(ctx context.Context) {
		ok, err := r.leases.Heartbeat(ctx, key, owner, r.cfg.LeaseTTL)
		if err != nil {
			r.log.Warn("lease heartbeat failed", "key", key, "error", err)
		} else if !ok {
			r.log.Warn("lease lost, run may be rescheduled elsewhere", "key", key)
		}
	}

	runErr := r.exec.Run(ctx, txID, beat)
	r.finish(key, ru, runErr, false)
}

// finish records a run outcome. Aborted runs are forgotten entirely so a
// later start resumes from the durable checkpoint without burning a retry.
func (r *Registry) finish(key string, ru *run, runErr error, leasedElsewhere bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case leasedElsewhere:
		delete(r.runs, key)
		ru.err = nil
		metrics.ExecutorsCompleted.WithLabelValues("leased_elsewhere").Inc()
	case runErr == nil:
		ru.state = stateSucceeded
		ru.err = nil
		metrics.ExecutorsCompleted.WithLabelValues("success").Inc()
	default:
		switch executor.Classify(runErr) {
		case executor.KindAborted:
			delete(r.runs, key)
			ru.err = runErr
			metrics.ExecutorsCompleted.WithLabelValues("aborted").Inc()
			r.log.Info("run aborted", "key", key)
		case executor.KindFatal:
			ru.state = stateFailed
			ru.failures = r.cfg.MaxRetries
			ru.err = runErr
			metrics.ExecutorsCompleted.WithLabelValues("fatal").Inc()
			metrics.EscalationsTotal.WithLabelValues("data_error").Inc()
			r.log.Error("run failed fatally", "key", key, "error", runErr)
		default:
			ru.state = stateFailed
			ru.failures++
			ru.err = runErr
			metrics.ExecutorsCompleted.WithLabelValues("failure").Inc()
			r.log.Error("run failed", "key", key, "failures", ru.failures, "error", runErr)
		}
	}
	close(ru.done)
}

// Cancel aborts a single run by key. The transaction keeps its last durably
// persisted state.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ru, ok := r.runs[key]
	if !ok || ru.state != stateRunning || ru.cancel == nil {
		return false
	}
	ru.cancel()
	return true
}

// Running returns the number of in-flight runs.
func (r *Registry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ru := range r.runs {
		if ru.state == stateRunning {
			n++
		}
	}
	return n
}

// Wait blocks until all in-flight runs finish naturally.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Close aborts all in-flight runs and waits for them to unwind.
func (r *Registry) Close() {
	r.rootCancel()
	r.wg.Wait()
}
