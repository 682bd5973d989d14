package quote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"slopesniper/internal/jupiter"
	"slopesniper/internal/jupiterprice"
	"slopesniper/internal/ledger"
	"slopesniper/internal/policy"
	"slopesniper/internal/rugcheck"
)

func testConfig() policy.Config {
	return policy.Config{
		MaxSlippageBps:        100,
		MaxTradeUSD:           decimal.NewFromInt(1000),
		MinRugcheckScore:      50,
		RequireMintDisabled:   false,
		RequireFreezeDisabled: false,
	}
}

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

const solMint = "So11111111111111111111111111111111111111112"
const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func newTestEngine(t *testing.T, jupSrv, priceSrv, rugSrv *httptest.Server) (*Engine, *ledger.Ledger) {
	t.Helper()
	l := openTestLedger(t)

	jc := jupiter.NewClient(5*time.Second, []string{"k"})
	jc.SetBaseURL(jupSrv.URL)

	pc := jupiterprice.NewClient(5*time.Second, "")
	pc.SetBaseURLs(priceSrv.URL, priceSrv.URL)

	rc := rugcheck.NewClient(5 * time.Second)
	if rugSrv != nil {
		rc.SetBaseURL(rugSrv.URL)
	}

	e := NewEngine(Dependencies{
		TakerAddress: "wallet123",
		Jupiter:      jc,
		Prices:       pc,
		Rugcheck:     rc,
		Intents:      l.Intents(),
		PolicyCfg:    testConfig(),
	})
	return e, l
}

func TestQuoteRejectsSymbolInput(t *testing.T) {
	priceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer priceSrv.Close()
	jupSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer jupSrv.Close()

	e, _ := newTestEngine(t, jupSrv, priceSrv, nil)
	_, err := e.Quote(context.Background(), Request{FromMint: "SOL", ToMint: usdcMint, Amount: "1", SlippageBps: 50})
	if err != ErrInvalidFromMint {
		t.Fatalf("expected ErrInvalidFromMint, got %v", err)
	}
}

func TestQuoteCreatesIntentOnSuccess(t *testing.T) {
	priceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			solMint: map[string]any{"usdPrice": "150.0"},
		})
	}))
	defer priceSrv.Close()

	jupSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jupiter.Order{
			InputMint: solMint, OutputMint: usdcMint, InAmount: "1000000000", OutAmount: "150000000",
			Transaction: "dGVzdA==", RequestID: "req-1", PriceImpact: 0.01,
		})
	}))
	defer jupSrv.Close()

	e, l := newTestEngine(t, jupSrv, priceSrv, nil)

	res, err := e.Quote(context.Background(), Request{FromMint: solMint, ToMint: usdcMint, Amount: "1", SlippageBps: 50})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if res.RouteSummary != "SOL -> USDC" {
		t.Fatalf("route summary = %q", res.RouteSummary)
	}
	if res.OutAmountEst != "150" {
		t.Fatalf("out amount est = %q", res.OutAmountEst)
	}

	intent, err := l.Intents().Get(context.Background(), res.IntentID)
	if err != nil || intent == nil {
		t.Fatalf("intent not persisted: %v", err)
	}
	if intent.RequestID != "req-1" {
		t.Fatalf("request id = %q", intent.RequestID)
	}
}

func TestQuoteBlockedBySlippagePolicy(t *testing.T) {
	priceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer priceSrv.Close()
	jupSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach the aggregator when policy blocks")
	}))
	defer jupSrv.Close()

	e, _ := newTestEngine(t, jupSrv, priceSrv, nil)
	_, err := e.Quote(context.Background(), Request{FromMint: solMint, ToMint: usdcMint, Amount: "1", SlippageBps: 5000})
	var blocked *PolicyBlockedError
	if err == nil {
		t.Fatal("expected policy block")
	}
	if !asPolicyBlocked(err, &blocked) {
		t.Fatalf("expected PolicyBlockedError, got %v", err)
	}
}

func asPolicyBlocked(err error, target **PolicyBlockedError) bool {
	if pb, ok := err.(*PolicyBlockedError); ok {
		*target = pb
		return true
	}
	return false
}

func TestQuoteSurfacesAggregatorErrorCode(t *testing.T) {
	priceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer priceSrv.Close()
	jupSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jupiter.Order{ErrorCode: "NO_ROUTE", ErrorMessage: "no route found"})
	}))
	defer jupSrv.Close()

	e, _ := newTestEngine(t, jupSrv, priceSrv, nil)
	_, err := e.Quote(context.Background(), Request{FromMint: solMint, ToMint: usdcMint, Amount: "1", SlippageBps: 50})
	qf, ok := err.(*QuoteFailedError)
	if !ok {
		t.Fatalf("expected QuoteFailedError, got %v", err)
	}
	if qf.Code != "NO_ROUTE" {
		t.Fatalf("code = %q", qf.Code)
	}
}
