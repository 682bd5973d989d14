package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetBalanceReturnsValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(response{Result: json.RawMessage(`{"value":5000000000}`)})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL)
	balance, err := c.GetBalance(context.Background(), "wallet")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 5_000_000_000 {
		t.Fatalf("balance = %d", balance)
	}
}

func TestFallsBackWhenPrimaryFails(t *testing.T) {
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(response{Result: json.RawMessage(`{"value":42}`)})
	}))
	defer fallback.Close()

	c := NewClient("http://127.0.0.1:1", fallback.URL)
	balance, err := c.GetBalance(context.Background(), "wallet")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 42 {
		t.Fatalf("balance = %d, want fallback value 42", balance)
	}
}

func TestCircuitOpensAfterRepeatedFailures(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "http://127.0.0.1:1")
	for i := 0; i < circuitOpensAfterFailures; i++ {
		c.recordFailure()
	}
	if !c.isCircuitOpen() {
		t.Fatal("expected circuit to be open after repeated failures")
	}
}

func TestRPCErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(response{Error: &RPCError{Code: -32000, Message: "boom"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL)
	_, err := c.GetBalance(context.Background(), "wallet")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParseTxErrorClassifiesSlippage(t *testing.T) {
	txErr := ParseTxError(&RPCError{Code: 1, Message: "slippage tolerance exceeded"})
	if txErr.Action != "increase slippage_bps or retry" {
		t.Fatalf("action = %q, want the slippage suggestion", txErr.Action)
	}
}

func TestBlockhashCacheServesFromBuffer(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(response{Result: json.RawMessage(`{"value":{"blockhash":"abc","lastValidBlockHeight":100}}`)})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL)
	cache := NewBlockhashCache(c, time.Hour, time.Hour)
	if err := cache.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer cache.Stop()

	hash, height, err := cache.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hash != "abc" || height != 100 {
		t.Fatalf("unexpected cache contents: %s %d", hash, height)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 fetch, got %d", calls)
	}
}
