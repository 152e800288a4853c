package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/stakeops/orchestrator/internal/core/domain"
	"github.com/stakeops/orchestrator/internal/infra/chain"
	"github.com/stakeops/orchestrator/internal/infra/storage"
	"github.com/stakeops/orchestrator/internal/orchestrator/metrics"
)

// Config holds executor timing and retry policy.
type Config struct {
	PollInterval      time.Duration
	ConfirmTimeout    time.Duration
	HeartbeatInterval time.Duration
	StepTimeout       time.Duration
	RetryDelay        time.Duration
	SubmitAttempts    int
	VerifyAttempts    int
	CascadeOnFailure  *bool
}

// WithDefaults fills unset fields with the designed defaults.
func (c Config) WithDefaults() Config {
	if c.PollInterval == 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.ConfirmTimeout == 0 {
		c.ConfirmTimeout = 45 * time.Minute
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 6 * time.Minute
	}
	if c.StepTimeout == 0 {
		c.StepTimeout = 30 * time.Second
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
	if c.SubmitAttempts == 0 {
		c.SubmitAttempts = 3
	}
	if c.VerifyAttempts == 0 {
		c.VerifyAttempts = 3
	}
	if c.CascadeOnFailure == nil {
		t := true
		c.CascadeOnFailure = &t
	}
	return c
}

// Starter schedules an executor run for a transaction. Implemented by the
// runner registry; cascading goes through it so dependant starts get the same
// dedup and retry accounting as any other start.
type Starter interface {
	Start(ctx context.Context, tx *domain.Transaction, trigger string)
}

// Projector derives side-effect records from a confirmed transaction.
// Best-effort: the executor ignores its outcome.
type Projector interface {
	Project(ctx context.Context, tx *domain.Transaction)
}

// Heartbeat is the liveness signal emitted during the confirmation wait.
type Heartbeat func(ctx context.Context)

// Executor drives a single transaction through
// load → submit → await confirmation → verify → cascade.
// All authoritative state lives in storage; a run re-reads it before acting
// and short-circuits if the transaction is already terminal, so concurrent or
// repeated runs of the same transaction are idempotent.
type Executor struct {
	txs       storage.TransactionRepository
	gateway   chain.Gateway
	projector Projector
	starter   Starter
	cfg       Config
	log       *slog.Logger
}

// New creates an executor. SetStarter must be called before Run if cascading
// is wanted.
func New(txs storage.TransactionRepository, gateway chain.Gateway, projector Projector, cfg Config) *Executor {
	return &Executor{
		txs:       txs,
		gateway:   gateway,
		projector: projector,
		cfg:       cfg.WithDefaults(),
		log:       slog.Default().With("component", "executor"),
	}
}

// SetStarter wires the scheduling layer used by the cascade step.
func (e *Executor) SetStarter(s Starter) {
	e.starter = s
}

// Run executes the state machine for one transaction. beat may be nil.
func (e *Executor) Run(ctx context.Context, txID uint64, beat Heartbeat) error {
	log := e.log.With("tx", txID)

	// Loaded
	tx, err := e.txs.Get(ctx, txID)
	if err != nil {
		if errors.Is(err, storage.ErrTransactionNotFound) {
			return &DataError{TxID: txID, Reason: "record not found"}
		}
		return fmt.Errorf("load transaction %d: %w", txID, err)
	}
	if tx.Status.IsTerminal() {
		// Idempotent restart: nothing to execute, but re-run the cascade so
		// dependants orphaned by a crash between verify and cascade still
		// get started. Dedup in the scheduling layer makes this a no-op in
		// the common case.
		log.Info("transaction already terminal, skipping to cascade", "status", tx.Status)
		e.cascade(ctx, tx, tx.Status)
		return nil
	}
	if tx.SignedPayload == "" {
		return &DataError{TxID: txID, Reason: "signed payload is empty"}
	}

	// Submitted. A stored hash is the durable checkpoint: resumed runs go
	// straight back to the confirmation wait instead of resubmitting.
	if tx.Hash == nil {
		if err := e.submit(ctx, tx); err != nil {
			return err
		}
	} else if tx.SubmitHeight == nil {
		// Hash known but no height checkpoint (crash between the two
		// writes). Fall back to the current height as the wait floor.
		height, err := e.currentHeight(ctx)
		if err != nil {
			return fmt.Errorf("recover submit height for %d: %w", txID, err)
		}
		if err := e.txs.Update(ctx, tx.ID, domain.TxPatch{SubmitHeight: &height}); err != nil {
			return fmt.Errorf("checkpoint submit height for %d: %w", txID, err)
		}
		tx.SubmitHeight = &height
	}

	// AwaitingConfirmation
	if err := e.awaitConfirmation(ctx, tx, beat); err != nil {
		return err
	}

	// Verified
	status, err := e.verify(ctx, tx)
	if err != nil {
		return err
	}
	log.Info("transaction verified", "hash", *tx.Hash, "status", status)

	// Best-effort projection for confirmed stakes.
	if status == domain.TxStatusSuccess && tx.Purpose == domain.TxPurposeStake && e.projector != nil {
		e.projector.Project(ctx, tx)
	}

	// Cascaded
	e.cascade(ctx, tx, status)
	return nil
}

func (e *Executor) submit(ctx context.Context, tx *domain.Transaction) error {
	height, err := e.currentHeight(ctx)
	if err != nil {
		return fmt.Errorf("record submit height for %d: %w", tx.ID, err)
	}

	var hash string
	backoff := retry.WithMaxRetries(uint64(e.cfg.SubmitAttempts-1), retry.NewConstant(e.cfg.RetryDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		stepCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
		defer cancel()

		res, err := e.gateway.Submit(stepCtx, tx.SignedPayload)
		if err != nil {
			return retry.RetryableError(err)
		}
		if res == nil || res.Hash == "" {
			return retry.RetryableError(errors.New("submit returned no hash"))
		}
		hash = res.Hash
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
		}
		// The chain may have accepted the transaction anyway. Leave the
		// stored status alone and surface the ambiguity.
		metrics.EscalationsTotal.WithLabelValues("ambiguous_submission").Inc()
		e.log.Error("submission outcome unknown, escalating",
			"tx", tx.ID, "attempts", e.cfg.SubmitAttempts, "error", err)
		return &AmbiguousSubmissionError{TxID: tx.ID, Attempts: e.cfg.SubmitAttempts, Err: err}
	}

	metrics.SubmissionsTotal.Inc()
	e.log.Info("transaction submitted", "tx", tx.ID, "hash", hash, "height", height)

	if err := e.txs.Update(ctx, tx.ID, domain.TxPatch{Hash: &hash, SubmitHeight: &height}); err != nil {
		return fmt.Errorf("checkpoint submission for %d: %w", tx.ID, err)
	}
	tx.Hash = &hash
	tx.SubmitHeight = &height
	return nil
}

// awaitConfirmation polls the chain height until it passes the submit height.
// This is the orchestrator's only suspension point: it heartbeats so a
// supervisor can tell a waiting run from a dead one, and it honors
// cancellation without touching the stored status.
func (e *Executor) awaitConfirmation(ctx context.Context, tx *domain.Transaction, beat Heartbeat) error {
	start := time.Now()
	deadline := start.Add(e.cfg.ConfirmTimeout)
	lastBeat := start

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		height, err := e.currentHeight(ctx)
		if err == nil && height > *tx.SubmitHeight {
			metrics.ConfirmationWait.Observe(time.Since(start).Seconds())
			return nil
		}
		if err != nil {
			e.log.Warn("height poll failed", "tx", tx.ID, "error", err)
		}

		if time.Since(lastBeat) >= e.cfg.HeartbeatInterval {
			if beat != nil {
				beat(ctx)
			}
			metrics.HeartbeatsTotal.Inc()
			lastBeat = time.Now()
		}

		if time.Now().After(deadline) {
			metrics.EscalationsTotal.WithLabelValues("confirmation_timeout").Inc()
			return &StallError{TxID: tx.ID, Err: fmt.Errorf("no confirmation after %s", e.cfg.ConfirmTimeout)}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (e *Executor) verify(ctx context.Context, tx *domain.Transaction) (domain.TxStatus, error) {
	var result *chain.TxResult
	backoff := retry.WithMaxRetries(uint64(e.cfg.VerifyAttempts-1), retry.NewConstant(e.cfg.RetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		stepCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
		defer cancel()

		res, err := e.gateway.GetTxResult(stepCtx, *tx.Hash)
		if err != nil {
			return retry.RetryableError(err)
		}
		if res == nil {
			// A hash exists, so a result must eventually too.
			return retry.RetryableError(errors.New("no result for hash"))
		}
		result = res
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
		}
		metrics.EscalationsTotal.WithLabelValues("verification_failed").Inc()
		return "", fmt.Errorf("verify %d (%s) after %d attempts: %w", tx.ID, *tx.Hash, e.cfg.VerifyAttempts, err)
	}

	status := domain.TxStatusFailure
	if result.Code == 0 {
		status = domain.TxStatusSuccess
	}

	if err := e.txs.Update(ctx, tx.ID, domain.TxPatch{Status: &status, Hash: tx.Hash}); err != nil {
		return "", fmt.Errorf("persist verified status for %d: %w", tx.ID, err)
	}
	return status, nil
}

// cascade starts an executor run for every dependant of tx. Dependants are
// started on Failure too unless configured otherwise; callers who want a
// failed parent to short-circuit its chain must not create the edge.
func (e *Executor) cascade(ctx context.Context, tx *domain.Transaction, status domain.TxStatus) {
	if status == domain.TxStatusFailure && !*e.cfg.CascadeOnFailure {
		e.log.Info("skipping cascade for failed parent", "tx", tx.ID)
		return
	}

	deps, err := e.txs.ListDependants(ctx, tx.ID)
	if err != nil {
		e.log.Error("failed to list dependants", "tx", tx.ID, "error", err)
		return
	}
	if e.starter == nil {
		return
	}

	for _, dep := range deps {
		metrics.CascadesTotal.Inc()
		e.starter.Start(ctx, dep, "cascade")
	}
}

func (e *Executor) currentHeight(ctx context.Context) (uint64, error) {
	stepCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()
	return e.gateway.CurrentHeight(stepCtx)
}
