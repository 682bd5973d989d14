package jupiter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetOrderHitsExpectedQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("inputMint") != SOLMint {
			t.Errorf("inputMint = %q", r.URL.Query().Get("inputMint"))
		}
		if r.URL.Query().Get("taker") != "wallet123" {
			t.Errorf("taker = %q", r.URL.Query().Get("taker"))
		}
		json.NewEncoder(w).Encode(Order{
			InputMint: SOLMint, OutputMint: "USDC", InAmount: "1000000", OutAmount: "99000",
			Transaction: "dGVzdA==", RequestID: "req-1",
		})
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, []string{"k"})
	c.baseURL = srv.URL

	order, err := c.GetOrder(context.Background(), OrderParams{
		InputMint: SOLMint, OutputMint: "USDC", AmountAtomic: 1_000_000, Taker: "wallet123", SlippageBps: 50,
	})
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.RequestID != "req-1" || order.Transaction == "" {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestExecuteReturnsSignatureOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SignedTransaction string `json:"signedTransaction"`
			RequestID         string `json:"requestId"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.RequestID != "req-1" {
			t.Errorf("requestId = %q", body.RequestID)
		}
		json.NewEncoder(w).Encode(ExecuteResult{Status: "Success", Signature: "sig-abc"})
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, []string{"k"})
	c.baseURL = srv.URL

	res, err := c.Execute(context.Background(), "c2lnbmVk", "req-1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Succeeded() || res.Signature != "sig-abc" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRequestJSONDoesNotRetry4xx(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, []string{"k"})
	c.baseURL = srv.URL

	_, err := c.GetOrder(context.Background(), OrderParams{InputMint: "A", OutputMint: "B", AmountAtomic: 1})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call (no retry on 4xx), got %d", calls)
	}
}

func TestGetHoldingsParsesTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Holdings{Tokens: map[string]TokenHolding{
			SOLMint: {Amount: "5000000000", UIAmount: 5.0},
		}})
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, []string{"k"})
	c.baseURL = srv.URL

	h, err := c.GetHoldings(context.Background(), "wallet123")
	if err != nil {
		t.Fatalf("GetHoldings: %v", err)
	}
	if h.Tokens[SOLMint].UIAmount != 5.0 {
		t.Fatalf("unexpected holdings: %+v", h)
	}
}
