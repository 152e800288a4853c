package memory

import (
	"context"
	"sync"
	"time"

	"github.com/stakeops/orchestrator/internal/core/domain"
	"github.com/stakeops/orchestrator/internal/infra/storage"
)

// MemoryStorage backs all repositories with in-process maps. Used for tests
// and for running without a database URL configured.
type MemoryStorage struct {
	txs        map[uint64]*domain.Transaction
	activities map[uint64]*domain.Activity
	nodes      []*domain.Node
	providers  map[uint64]*domain.Provider
	mu         sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		txs:        make(map[uint64]*domain.Transaction),
		activities: make(map[uint64]*domain.Activity),
		providers:  make(map[uint64]*domain.Provider),
	}
}

// PutTransaction seeds a transaction. Intended for tests and dev mode.
func (s *MemoryStorage) PutTransaction(tx *domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tx
	s.txs[tx.ID] = &cp
}

// PutActivity seeds an activity.
func (s *MemoryStorage) PutActivity(a *domain.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.activities[a.ID] = &cp
}

// PutProvider seeds a provider.
func (s *MemoryStorage) PutProvider(p *domain.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.providers[p.ID] = &cp
}

// Nodes returns a snapshot of all inserted node records.
func (s *MemoryStorage) Nodes() []*domain.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// -----------------------------------------------------------------------------
// Transaction Repository
// -----------------------------------------------------------------------------

type TxRepo struct {
	store *MemoryStorage
}

func NewTxRepo(store *MemoryStorage) *TxRepo {
	return &TxRepo{store: store}
}

func (r *TxRepo) Get(ctx context.Context, id uint64) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	tx, ok := r.store.txs[id]
	if !ok {
		return nil, storage.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (r *TxRepo) Update(ctx context.Context, id uint64, patch domain.TxPatch) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tx, ok := r.store.txs[id]
	if !ok {
		return storage.ErrTransactionNotFound
	}
	if patch.Status != nil {
		if tx.Status.IsTerminal() {
			return storage.ErrTerminalStatus
		}
		tx.Status = *patch.Status
	}
	if patch.Hash != nil {
		h := *patch.Hash
		tx.Hash = &h
	}
	if patch.SubmitHeight != nil {
		h := *patch.SubmitHeight
		tx.SubmitHeight = &h
	}
	tx.UpdatedAt = time.Now()
	return nil
}

func (r *TxRepo) ListPending(ctx context.Context) ([]*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Transaction
	for _, tx := range r.store.txs {
		if tx.Status == domain.TxStatusPending {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *TxRepo) ListDependants(ctx context.Context, id uint64) ([]*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Transaction
	for _, tx := range r.store.txs {
		if tx.DependsOn != nil && *tx.DependsOn == id {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *TxRepo) ListByActivity(ctx context.Context, activityID uint64) ([]*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Transaction
	for _, tx := range r.store.txs {
		if tx.ActivityID != nil && *tx.ActivityID == activityID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Activity Repository
// -----------------------------------------------------------------------------

type ActivityRepo struct {
	store *MemoryStorage
}

func NewActivityRepo(store *MemoryStorage) *ActivityRepo {
	return &ActivityRepo{store: store}
}

func (r *ActivityRepo) Get(ctx context.Context, id uint64) (*domain.Activity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.activities[id]
	if !ok {
		return nil, storage.ErrActivityNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *ActivityRepo) Update(ctx context.Context, id uint64, patch domain.ActivityPatch) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.activities[id]
	if !ok {
		return storage.ErrActivityNotFound
	}
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	a.UpdatedAt = time.Now()
	return nil
}

func (r *ActivityRepo) List(ctx context.Context) ([]*domain.Activity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.Activity, 0, len(r.store.activities))
	for _, a := range r.store.activities {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Node Repository
// -----------------------------------------------------------------------------

type NodeRepo struct {
	store *MemoryStorage
}

func NewNodeRepo(store *MemoryStorage) *NodeRepo {
	return &NodeRepo{store: store}
}

func (r *NodeRepo) InsertBatch(ctx context.Context, nodes []*domain.Node, txID uint64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, n := range nodes {
		cp := *n
		cp.TxID = txID
		cp.CreatedAt = time.Now()
		r.store.nodes = append(r.store.nodes, &cp)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Provider Repository
// -----------------------------------------------------------------------------

type ProviderRepo struct {
	store *MemoryStorage
}

func NewProviderRepo(store *MemoryStorage) *ProviderRepo {
	return &ProviderRepo{store: store}
}

func (r *ProviderRepo) Get(ctx context.Context, id uint64) (*domain.Provider, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.providers[id]
	if !ok {
		return nil, storage.ErrProviderNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *ProviderRepo) List(ctx context.Context) ([]*domain.Provider, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.Provider, 0, len(r.store.providers))
	for _, p := range r.store.providers {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *ProviderRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.providers[id]
	if !ok {
		return storage.ErrProviderNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return nil
}
