package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stakeops/orchestrator/internal/core/config"
	"github.com/stakeops/orchestrator/internal/infra/chain"
	redisclient "github.com/stakeops/orchestrator/internal/infra/redis"
	"github.com/stakeops/orchestrator/internal/infra/storage"
	"github.com/stakeops/orchestrator/internal/infra/storage/memory"
	"github.com/stakeops/orchestrator/internal/infra/storage/postgres"
	"github.com/stakeops/orchestrator/internal/orchestrator/activity"
	"github.com/stakeops/orchestrator/internal/orchestrator/dispatch"
	"github.com/stakeops/orchestrator/internal/orchestrator/executor"
	"github.com/stakeops/orchestrator/internal/orchestrator/health"
	"github.com/stakeops/orchestrator/internal/orchestrator/project"
	"github.com/stakeops/orchestrator/internal/orchestrator/provider"
	"github.com/stakeops/orchestrator/internal/orchestrator/runner"
)

// Orchestrator is the main application struct that wires the execution
// engine's collaborators and manages their lifecycle.
type Orchestrator struct {
	cfg          Config
	registry     *runner.Registry
	dispatcher   *dispatch.Dispatcher
	aggregator   *activity.Aggregator
	poller       *provider.Poller
	healthServer *health.Server
	txs          storage.TransactionRepository
	db           *postgres.DB
	redisClient  *redisclient.Client
	nodeConn     *chain.GRPCConn
	cancel       context.CancelFunc
	log          *slog.Logger
}

// Config holds the application configuration.
type Config struct {
	Port           int
	Chain          config.ChainConfig
	Redis          redisclient.Config
	Database       postgres.Config
	Executor       executor.Config
	Runner         runner.Config
	Dispatcher     dispatch.Config
	ProviderPoll   time.Duration
	DispatchLoop   bool // run the periodic dispatcher
	ProviderPolls  bool // run the provider status poller
	HealthDisabled bool // skip the HTTP health server (one-shot CLI runs)
}

// NewOrchestrator creates an orchestrator with all dependencies initialized.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	// 1. Initialize Storage
	var txRepo storage.TransactionRepository
	var activityRepo storage.ActivityRepository
	var nodeRepo storage.NodeRepository
	var providerRepo storage.ProviderRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		txRepo = postgres.NewTxRepo(db)
		activityRepo = postgres.NewActivityRepo(db)
		nodeRepo = postgres.NewNodeRepo(db)
		providerRepo = postgres.NewProviderRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		txRepo = memory.NewTxRepo(store)
		activityRepo = memory.NewActivityRepo(store)
		nodeRepo = memory.NewNodeRepo(store)
		providerRepo = memory.NewProviderRepo(store)
		slog.Info("Using Memory storage")
	}

	// 2. Lease store: Redis when configured, in-process otherwise.
	var leases runner.LeaseStore
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		leases = redisClient
		slog.Info("Using Redis lease store")
	} else {
		leases = runner.NewMemoryLeases()
		slog.Info("Using in-process lease store")
	}

	// 3. Chain gateway
	gateway := chain.NewHTTPGateway(cfg.Chain.Name, cfg.Chain.Endpoint, time.Duration(cfg.Chain.Timeout))

	var nodeConn *chain.GRPCConn
	if cfg.Chain.GRPCEndpoint != "" {
		var err error
		nodeConn, err = chain.NewGRPCConn(context.Background(), cfg.Chain.Name, cfg.Chain.GRPCEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to dial chain grpc endpoint: %w", err)
		}
	}

	// 4. Execution engine
	projector := project.New(nodeRepo, providerRepo, project.NewNotifier(time.Duration(cfg.Chain.Timeout)))
	exec := executor.New(txRepo, gateway, projector, cfg.Executor)
	registry := runner.New(exec, leases, cfg.Runner)
	exec.SetStarter(registry)

	dispatcher := dispatch.New(txRepo, registry, cfg.Dispatcher)
	aggregator := activity.New(activityRepo, txRepo, registry)
	poller := provider.NewPoller(providerRepo, cfg.ProviderPoll)

	o := &Orchestrator{
		cfg:         cfg,
		registry:    registry,
		dispatcher:  dispatcher,
		aggregator:  aggregator,
		poller:      poller,
		txs:         txRepo,
		db:          db,
		redisClient: redisClient,
		nodeConn:    nodeConn,
		log:         slog.Default().With("component", "control"),
	}

	if !cfg.HealthDisabled {
		monitor := health.NewMonitor(txRepo, gateway, registry)
		if nodeConn != nil {
			monitor.SetNodeProbe(nodeConn)
		}
		o.healthServer = health.NewServer(monitor, cfg.Port)
	}

	return o, nil
}

// Start launches the background loops.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, o.cancel = context.WithCancel(ctx)

	if o.db != nil {
		o.db.StartMetricsCollector(ctx)
	}

	if o.healthServer != nil {
		go func() {
			if err := o.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				o.log.Error("health server stopped", "error", err)
			}
		}()
	}

	if o.cfg.DispatchLoop {
		go func() {
			if err := o.dispatcher.RunLoop(ctx); err != nil {
				o.log.Error("dispatcher loop stopped", "error", err)
			}
		}()
	}

	if o.cfg.ProviderPolls {
		go o.poller.Run(ctx)
	}

	o.log.Info("orchestrator started", "port", o.cfg.Port)
	return nil
}

// RunDispatcher executes one dispatch pass.
func (o *Orchestrator) RunDispatcher(ctx context.Context) error {
	return o.dispatcher.Run(ctx)
}

// RunActivity executes all roots of an activity and persists its roll-up.
func (o *Orchestrator) RunActivity(ctx context.Context, activityID uint64) (*activity.Result, error) {
	return o.aggregator.Run(ctx, activityID)
}

// RunTransaction executes a single transaction to a terminal outcome.
func (o *Orchestrator) RunTransaction(ctx context.Context, txID uint64) error {
	tx, err := o.txs.Get(ctx, txID)
	if err != nil {
		return err
	}
	return o.registry.StartWait(ctx, tx, "manual")
}

// WaitForRuns blocks until all in-flight executor runs finish. Used by
// one-shot CLI invocations.
func (o *Orchestrator) WaitForRuns() {
	o.registry.Wait()
}

// CancelRun aborts an in-flight executor run.
func (o *Orchestrator) CancelRun(key string) bool {
	return o.registry.Cancel(key)
}

// Stop gracefully shuts the orchestrator down.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if o.cancel != nil {
		o.cancel()
	}

	o.registry.Close()

	if o.healthServer != nil {
		if err := o.healthServer.Stop(ctx); err != nil {
			o.log.Warn("health server shutdown", "error", err)
		}
	}
	if o.redisClient != nil {
		_ = o.redisClient.Close()
	}
	if o.nodeConn != nil {
		_ = o.nodeConn.Close()
	}
	if o.db != nil {
		_ = o.db.Close()
	}

	o.log.Info("orchestrator stopped")
	return nil
}
