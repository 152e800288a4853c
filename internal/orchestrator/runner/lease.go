package runner

import (
	"context"
	"sync"
	"time"
)

// LeaseStore tracks which process owns a live executor run. A lease that
// stops being heartbeated expires, which is how a supervisor tells a dead run
// from one that is legitimately waiting on confirmation.
type LeaseStore interface {
	// Acquire takes the lease for a run key; false if held elsewhere
	Acquire(ctx context.Context, runKey, owner string, ttl time.Duration) (bool, error)

	// Heartbeat extends a held lease; false if lost
	Heartbeat(ctx context.Context, runKey, owner string, ttl time.Duration) (bool, error)

	// Release gives up a held lease
	Release(ctx context.Context, runKey, owner string) error
}

type memoryLease struct {
	owner  string
	expiry time.Time
}

// MemoryLeases is an in-process LeaseStore for tests and single-node runs.
type MemoryLeases struct {
	leases map[string]memoryLease
	mu     sync.Mutex
}

func NewMemoryLeases() *MemoryLeases {
	return &MemoryLeases{leases: make(map[string]memoryLease)}
}

func (m *MemoryLeases) Acquire(ctx context.Context, runKey, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leases[runKey]; ok && l.owner != owner && time.Now().Before(l.expiry) {
		return false, nil
	}
	m.leases[runKey] = memoryLease{owner: owner, expiry: time.Now().Add(ttl)}
	return true, nil
}

func (m *MemoryLeases) Heartbeat(ctx context.Context, runKey, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[runKey]
	if !ok || l.owner != owner || time.Now().After(l.expiry) {
		return false, nil
	}
	m.leases[runKey] = memoryLease{owner: owner, expiry: time.Now().Add(ttl)}
	return true, nil
}

func (m *MemoryLeases) Release(ctx context.Context, runKey, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leases[runKey]; ok && l.owner == owner {
		delete(m.leases, runKey)
	}
	return nil
}
