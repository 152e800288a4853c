package project

import (
	"context"
	"log/slog"

	"github.com/stakeops/orchestrator/internal/core/domain"
	"github.com/stakeops/orchestrator/internal/infra/storage"
)

// Result reports what one projection did. Purely informational; projection
// never affects the transaction's own status.
type Result struct {
	NodesInserted int
	Notification  *NotifyResult
}

// Projector derives node records from a verified stake transaction and tells
// the owning provider. Both steps are best-effort and independent: a parse or
// insert failure is logged and absorbed, and the notification result is
// advisory.
type Projector struct {
	nodes     storage.NodeRepository
	providers storage.ProviderRepository
	notifier  *Notifier
	log       *slog.Logger
}

// New creates a projector.
func New(nodes storage.NodeRepository, providers storage.ProviderRepository, notifier *Notifier) *Projector {
	return &Projector{
		nodes:     nodes,
		providers: providers,
		notifier:  notifier,
		log:       slog.Default().With("component", "projector"),
	}
}

// Project implements executor.Projector.
func (p *Projector) Project(ctx context.Context, tx *domain.Transaction) {
	p.Run(ctx, tx)
}

// Run performs the projection and reports what happened.
func (p *Projector) Run(ctx context.Context, tx *domain.Transaction) Result {
	var res Result

	// Step 1: derive and insert node records. A malformed payload yields an
	// empty insertion set, never an error to the caller.
	nodes, err := parseStakedNodes(tx)
	if err != nil {
		p.log.Error("payload parse failed, no nodes derived", "tx", tx.ID, "error", err)
		nodes = nil
	}
	if len(nodes) > 0 {
		if err := p.nodes.InsertBatch(ctx, nodes, tx.ID); err != nil {
			p.log.Error("node insertion failed", "tx", tx.ID, "error", err)
		} else {
			res.NodesInserted = len(nodes)
			p.log.Info("derived nodes inserted", "tx", tx.ID, "count", len(nodes))
		}
	}

	// Step 2: advisory provider notification.
	if tx.ProviderID == nil || len(nodes) == 0 {
		return res
	}
	provider, err := p.providers.Get(ctx, *tx.ProviderID)
	if err != nil {
		p.log.Warn("provider lookup failed, skipping notification", "tx", tx.ID, "provider", *tx.ProviderID, "error", err)
		return res
	}

	notify := p.notifier.Notify(ctx, provider, tx, nodes)
	res.Notification = &notify
	if notify.Success {
		p.log.Info("provider notified", "tx", tx.ID, "provider", provider.Name)
	} else {
		p.log.Warn("provider notification failed", "tx", tx.ID, "provider", provider.Name, "message", notify.Message)
	}
	return res
}
