package project

import (
	"encoding/json"
	"fmt"

	"github.com/stakeops/orchestrator/internal/core/domain"
)

// payload is the unsigned transaction body: a list of chain messages.
type payload struct {
	Messages []message `json:"messages"`
}

type message struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Stake   string `json:"stake"`
	Balance string `json:"balance"`
}

// parseStakedNodes extracts the node descriptors staked by a confirmed
// transaction from its unsigned payload.
func parseStakedNodes(tx *domain.Transaction) ([]*domain.Node, error) {
	var p payload
	if err := json.Unmarshal([]byte(tx.UnsignedPayload), &p); err != nil {
		return nil, fmt.Errorf("parse payload of transaction %d: %w", tx.ID, err)
	}

	var nodes []*domain.Node
	for _, m := range p.Messages {
		if m.Type != "stake" {
			continue
		}
		if m.Address == "" {
			return nil, fmt.Errorf("stake message in transaction %d has no address", tx.ID)
		}
		nodes = append(nodes, &domain.Node{
			Address:    m.Address,
			Owner:      m.Owner,
			Stake:      m.Stake,
			Balance:    m.Balance,
			ProviderID: tx.ProviderID,
			TxID:       tx.ID,
		})
	}
	return nodes, nil
}
