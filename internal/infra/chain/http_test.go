package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPGateway_CurrentHeight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode body: %v", err)
			return
		}
		if v, ok := req["jsonrpc"].(string); !ok || v != "2.0" {
			t.Errorf("expected jsonrpc: 2.0, got %v", req["jsonrpc"])
		}
		if req["method"] != "chain_getHeight" {
			t.Errorf("expected chain_getHeight, got %v", req["method"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"result": float64(12345),
			"error":  nil,
			"id":     req["id"],
		})
	}))
	defer server.Close()

	g := NewHTTPGateway("testchain", server.URL, 5*time.Second)
	height, err := g.CurrentHeight(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if height != 12345 {
		t.Errorf("expected height 12345, got %d", height)
	}

	successes, failures := g.Stats()
	if successes != 1 || failures != 0 {
		t.Errorf("expected 1 success / 0 failures, got %d / %d", successes, failures)
	}
}

func TestHTTPGateway_Submit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode body: %v", err)
			return
		}
		if req["method"] != "tx_broadcast" {
			t.Errorf("expected tx_broadcast, got %v", req["method"])
		}
		params, ok := req["params"].([]any)
		if !ok || len(params) != 1 || params[0] != "0xabc" {
			t.Errorf("expected params [0xabc], got %v", req["params"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"hash": "H1"},
			"error":  nil,
			"id":     req["id"],
		})
	}))
	defer server.Close()

	g := NewHTTPGateway("testchain", server.URL, 5*time.Second)
	res, err := g.Submit(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Hash != "H1" {
		t.Errorf("expected hash H1, got %s", res.Hash)
	}
}

func TestHTTPGateway_GetTxResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"success": false, "code": 5, "gas_used": float64(21000)},
			"error":  nil,
			"id":     1,
		})
	}))
	defer server.Close()

	g := NewHTTPGateway("testchain", server.URL, 5*time.Second)
	res, err := g.GetTxResult(context.Background(), "H1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.Code != 5 {
		t.Errorf("expected code 5, got %+v", res)
	}
}

func TestHTTPGateway_GetTxResult_NullMeansNotIndexed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": nil,
			"error":  nil,
			"id":     1,
		})
	}))
	defer server.Close()

	g := NewHTTPGateway("testchain", server.URL, 5*time.Second)
	res, err := g.GetTxResult(context.Background(), "H1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Errorf("expected nil result for unindexed hash, got %+v", res)
	}
}

func TestHTTPGateway_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": nil,
			"error":  map[string]any{"code": -32000, "message": "tx already known"},
			"id":     1,
		})
	}))
	defer server.Close()

	g := NewHTTPGateway("testchain", server.URL, 5*time.Second)
	if _, err := g.Submit(context.Background(), "0xabc"); err == nil {
		t.Fatal("expected rpc error")
	}

	successes, failures := g.Stats()
	if successes != 0 || failures != 1 {
		t.Errorf("expected 0 successes / 1 failure, got %d / %d", successes, failures)
	}
}

func TestHTTPGateway_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	g := NewHTTPGateway("testchain", server.URL, 5*time.Second)
	if _, err := g.CurrentHeight(context.Background()); err == nil {
		t.Fatal("expected error for 429")
	}
}
