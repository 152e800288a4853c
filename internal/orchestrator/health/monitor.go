package health

import (
	"context"
	"sync"
	"time"

	"github.com/stakeops/orchestrator/internal/infra/chain"
	"github.com/stakeops/orchestrator/internal/infra/storage"
)

type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// RunCounter reports in-flight executor runs.
type RunCounter interface {
	Running() int
}

// NodeProbe checks connection-level reachability of the chain node.
type NodeProbe interface {
	Healthy(ctx context.Context) error
}

// Report is one health snapshot.
type Report struct {
	Status              Status `json:"status"`
	PendingTransactions int    `json:"pending_transactions"`
	RunningExecutors    int    `json:"running_executors"`
	ChainHeight         uint64 `json:"chain_height"`
	ChainReachable      bool   `json:"chain_reachable"`
	NodeServing         *bool  `json:"node_serving,omitempty"`
	StorageReachable    bool   `json:"storage_reachable"`
}

// Monitor aggregates health status from the orchestrator's collaborators.
type Monitor struct {
	txs        storage.TransactionRepository
	gateway    chain.Gateway
	runs       RunCounter
	nodeProbe  NodeProbe
	lastCheck  time.Time
	lastReport Report
	mu         sync.Mutex
}

// NewMonitor creates a health monitor.
func NewMonitor(txs storage.TransactionRepository, gateway chain.Gateway, runs RunCounter) *Monitor {
	return &Monitor{
		txs:     txs,
		gateway: gateway,
		runs:    runs,
	}
}

// SetNodeProbe enables gRPC-level node health probes.
func (m *Monitor) SetNodeProbe(p NodeProbe) {
	m.nodeProbe = p
}

// CheckHealth performs a health check, rate limited to one real probe per 10s.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && !m.lastCheck.IsZero() {
		return m.lastReport
	}

	report := Report{
		Status:           StatusHealthy,
		RunningExecutors: m.runs.Running(),
	}

	pending, err := m.txs.ListPending(ctx)
	if err != nil {
		report.Status = StatusCritical
	} else {
		report.StorageReachable = true
		report.PendingTransactions = len(pending)
	}

	height, err := m.gateway.CurrentHeight(ctx)
	if err != nil {
		if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	} else {
		report.ChainReachable = true
		report.ChainHeight = height
	}

	if m.nodeProbe != nil {
		serving := m.nodeProbe.Healthy(ctx) == nil
		report.NodeServing = &serving
		if !serving && report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
