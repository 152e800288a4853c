package project

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stakeops/orchestrator/internal/core/domain"
)

// NotifyResult is the advisory outcome of a provider notification. Failures
// are reported here, never raised.
type NotifyResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Notifier tells a staking provider about its newly staked addresses.
type Notifier struct {
	httpClient *http.Client
}

// NewNotifier creates a notifier.
func NewNotifier(timeout time.Duration) *Notifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		httpClient: &http.Client{Timeout: timeout},
	}
}

type notifyRequest struct {
	TxHash    string   `json:"tx_hash"`
	Addresses []string `json:"addresses"`
}

// Notify posts the staked addresses to the provider's endpoint.
func (n *Notifier) Notify(ctx context.Context, provider *domain.Provider, tx *domain.Transaction, nodes []*domain.Node) NotifyResult {
	addresses := make([]string, 0, len(nodes))
	for _, node := range nodes {
		addresses = append(addresses, node.Address)
	}

	hash := ""
	if tx.Hash != nil {
		hash = *tx.Hash
	}
	body, err := json.Marshal(notifyRequest{TxHash: hash, Addresses: addresses})
	if err != nil {
		return NotifyResult{Message: fmt.Sprintf("marshal notification: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", provider.Endpoint+"/staked-nodes", bytes.NewReader(body))
	if err != nil {
		return NotifyResult{Message: fmt.Sprintf("create notification request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return NotifyResult{Message: fmt.Sprintf("notify provider %s: %v", provider.Name, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NotifyResult{Message: fmt.Sprintf("provider %s responded %d", provider.Name, resp.StatusCode)}
	}

	return NotifyResult{Success: true, Message: fmt.Sprintf("notified provider %s of %d addresses", provider.Name, len(addresses))}
}
