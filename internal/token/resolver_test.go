package token

import (
	"context"
	"testing"
)

type stubSearcher struct {
	results []SearchResult
	err     error
}

func (s *stubSearcher) SearchToken(ctx context.Context, query string) ([]SearchResult, error) {
	return s.results, s.err
}

func TestResolvePassthroughMint(t *testing.T) {
	r := NewResolver(nil)
	mint := "So11111111111111111111111111111111111111112"
	res, err := r.Resolve(context.Background(), mint)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mint != mint {
		t.Fatalf("expected passthrough, got %q", res.Mint)
	}
}

func TestResolveBakedSymbol(t *testing.T) {
	r := NewResolver(nil)
	res, err := r.Resolve(context.Background(), "sol")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mint != SymbolToMint["SOL"] {
		t.Fatalf("got %q, want %q", res.Mint, SymbolToMint["SOL"])
	}
}

func TestResolveFallsThroughToSearch(t *testing.T) {
	r := NewResolver(&stubSearcher{results: []SearchResult{{Mint: "XYZ123", Symbol: "FOO"}}})
	res, err := r.Resolve(context.Background(), "FOO")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mint != "XYZ123" {
		t.Fatalf("got %q, want XYZ123", res.Mint)
	}
}

func TestResolveAmbiguousSearchResults(t *testing.T) {
	r := NewResolver(&stubSearcher{results: []SearchResult{{Mint: "A"}, {Mint: "B"}}})
	res, err := r.Resolve(context.Background(), "FOO")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mint != "" || len(res.Ambiguous) != 2 {
		t.Fatalf("expected ambiguous result, got %+v", res)
	}
}

func TestResolveNotFound(t *testing.T) {
	r := NewResolver(&stubSearcher{})
	_, err := r.Resolve(context.Background(), "NOPE")
	if err != ErrTokenNotFound {
		t.Fatalf("err = %v, want ErrTokenNotFound", err)
	}
}

func TestDecimalsKnownAndDefault(t *testing.T) {
	if d := Decimals(SymbolToMint["USDC"]); d != 6 {
		t.Fatalf("USDC decimals = %d, want 6", d)
	}
	if d := Decimals("SomeUnknownMint"); d != defaultDecimals {
		t.Fatalf("unknown mint decimals = %d, want %d", d, defaultDecimals)
	}
}

func TestAddTokenUserTable(t *testing.T) {
	r := NewResolver(nil)
	r.AddToken("foo", "MintForFoo")
	res, err := r.Resolve(context.Background(), "FOO")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mint != "MintForFoo" {
		t.Fatalf("got %q, want MintForFoo", res.Mint)
	}
}
