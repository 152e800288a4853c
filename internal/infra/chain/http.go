package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/stakeops/orchestrator/internal/orchestrator/metrics"
)

// HTTPGateway implements Gateway over JSON-RPC HTTP.
type HTTPGateway struct {
	name       string
	endpoint   string
	httpClient *http.Client

	mu           sync.RWMutex
	successCount int
	failureCount int
}

// NewHTTPGateway creates a new JSON-RPC chain gateway.
func NewHTTPGateway(name, endpoint string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call makes a single JSON-RPC call and decodes the result into out.
func (g *HTTPGateway) call(ctx context.Context, method string, params []any, out any) error {
	start := time.Now()

	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		g.recordFailure()
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		g.recordFailure()
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.recordFailure()
		metrics.ChainErrorsTotal.WithLabelValues(g.name, method).Inc()
		return fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		g.recordFailure()
		metrics.ChainErrorsTotal.WithLabelValues(g.name, method).Inc()
		return fmt.Errorf("provider rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		g.recordFailure()
		metrics.ChainErrorsTotal.WithLabelValues(g.name, method).Inc()
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		g.recordFailure()
		return fmt.Errorf("read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		g.recordFailure()
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		g.recordFailure()
		metrics.ChainErrorsTotal.WithLabelValues(g.name, method).Inc()
		return rpcResp.Error
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			g.recordFailure()
			return fmt.Errorf("decode result: %w", err)
		}
	}

	g.recordSuccess()
	metrics.ChainCallsTotal.WithLabelValues(g.name, method).Inc()
	metrics.ChainCallLatency.WithLabelValues(g.name, method).Observe(time.Since(start).Seconds())
	return nil
}

// CurrentHeight returns the chain's latest block height.
func (g *HTTPGateway) CurrentHeight(ctx context.Context) (uint64, error) {
	var height uint64
	if err := g.call(ctx, "chain_getHeight", nil, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// Submit broadcasts a signed transaction payload.
func (g *HTTPGateway) Submit(ctx context.Context, signedPayload string) (*SubmitResult, error) {
	var result SubmitResult
	if err := g.call(ctx, "tx_broadcast", []any{signedPayload}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTxResult retrieves the execution result of a confirmed transaction.
func (g *HTTPGateway) GetTxResult(ctx context.Context, hash string) (*TxResult, error) {
	var result *TxResult
	if err := g.call(ctx, "tx_getResult", []any{hash}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Stats returns cumulative success/failure counts.
func (g *HTTPGateway) Stats() (successes, failures int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.successCount, g.failureCount
}

func (g *HTTPGateway) recordSuccess() {
	g.mu.Lock()
	g.successCount++
	g.mu.Unlock()
}

func (g *HTTPGateway) recordFailure() {
	g.mu.Lock()
	g.failureCount++
	g.mu.Unlock()
}
