package jupiterprice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestGetPricesParsesMultipleMints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "A,B" {
			t.Errorf("ids = %q", r.URL.Query().Get("ids"))
		}
		json.NewEncoder(w).Encode(map[string]PriceEntry{
			"A": {USDPrice: decimal.NewFromFloat(1.5)},
			"B": {USDPrice: decimal.NewFromFloat(0.002)},
		})
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, "")
	c.priceURL = srv.URL

	prices, err := c.GetPrices(context.Background(), []string{"A", "B"})
	if err != nil {
		t.Fatalf("GetPrices: %v", err)
	}
	if !prices["A"].Equal(decimal.NewFromFloat(1.5)) {
		t.Fatalf("unexpected price for A: %v", prices["A"])
	}
}

func TestGetPriceSingleMint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]PriceEntry{"A": {USDPrice: decimal.NewFromInt(2)}})
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, "")
	c.priceURL = srv.URL

	price, found, err := c.GetPrice(context.Background(), "A")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if !found || !price.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected result: found=%v price=%v", found, price)
	}
}

func TestSearchTokenReturnsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]TokenInfo{{Mint: "XYZ", Symbol: "FOO"}})
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, "")
	c.tokensURL = srv.URL

	results, err := c.SearchToken(context.Background(), "foo")
	if err != nil {
		t.Fatalf("SearchToken: %v", err)
	}
	if len(results) != 1 || results[0].Mint != "XYZ" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestIsSuspiciousFlagsActiveAuthorities(t *testing.T) {
	susp, reasons := IsSuspicious(TokenInfo{Audit: TokenAudit{}})
	if !susp || len(reasons) == 0 {
		t.Fatalf("expected suspicious with no authorities disabled, got %v %v", susp, reasons)
	}

	clean, reasons2 := IsSuspicious(TokenInfo{Audit: TokenAudit{
		MintAuthorityDisabled: true, FreezeAuthorityDisabled: true,
	}})
	if clean {
		t.Fatalf("expected clean token, got reasons: %v", reasons2)
	}
}

func TestBadRequestNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, "")
	c.priceURL = srv.URL

	_, err := c.GetPrices(context.Background(), []string{"A"})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
