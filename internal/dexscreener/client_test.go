package dexscreener

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSearchPairsFiltersNonSolana(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{Pairs: []Pair{
			{ChainID: "solana", PairAddress: "sol1"},
			{ChainID: "ethereum", PairAddress: "eth1"},
		}})
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	c.baseURL = srv.URL

	pairs, err := c.SearchPairs(context.Background(), "foo")
	if err != nil {
		t.Fatalf("SearchPairs: %v", err)
	}
	if len(pairs) != 1 || pairs[0].PairAddress != "sol1" {
		t.Fatalf("unexpected pairs: %+v", pairs)
	}
}

func TestGetTokenPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Pair{{ChainID: "solana", PairAddress: "sol1"}})
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	c.baseURL = srv.URL

	pairs, err := c.GetTokenPairs(context.Background(), "MINT")
	if err != nil {
		t.Fatalf("GetTokenPairs: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
}
