package provider

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/stakeops/orchestrator/internal/core/domain"
	"github.com/stakeops/orchestrator/internal/infra/storage"
)

// Poller periodically fetches each provider's health endpoint and records the
// result. Deliberately simple: one GET per provider per tick, no retries.
type Poller struct {
	providers  storage.ProviderRepository
	httpClient *http.Client
	interval   time.Duration
	log        *slog.Logger
}

// NewPoller creates a provider status poller.
func NewPoller(providers storage.ProviderRepository, interval time.Duration) *Poller {
	if interval == 0 {
		interval = 5 * time.Minute
	}
	return &Poller{
		providers:  providers,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		interval:   interval,
		log:        slog.Default().With("component", "provider-poller"),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.pollAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) pollAll(ctx context.Context) {
	providers, err := p.providers.List(ctx)
	if err != nil {
		p.log.Error("failed to list providers", "error", err)
		return
	}

	for _, prov := range providers {
		status := p.check(ctx, prov)
		if status == prov.Status {
			continue
		}
		if err := p.providers.UpdateStatus(ctx, prov.ID, status); err != nil {
			p.log.Error("failed to update provider status", "provider", prov.Name, "error", err)
		} else {
			p.log.Info("provider status changed", "provider", prov.Name, "status", status)
		}
	}
}

func (p *Poller) check(ctx context.Context, prov *domain.Provider) string {
	if prov.Endpoint == "" {
		return domain.ProviderStatusUnknown
	}

	req, err := http.NewRequestWithContext(ctx, "GET", prov.Endpoint+"/status", nil)
	if err != nil {
		return domain.ProviderStatusUnknown
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.ProviderStatusDown
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return domain.ProviderStatusUp
	}
	return domain.ProviderStatusDown
}
