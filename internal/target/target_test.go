package target

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"slopesniper/internal/execengine"
	"slopesniper/internal/jupiter"
	"slopesniper/internal/jupiterprice"
	"slopesniper/internal/ledger"
	"slopesniper/internal/policy"
	"slopesniper/internal/quote"
)

const bonkMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
const solMintTest = "So11111111111111111111111111111111111111112"

type fakeWallet struct{}

func (fakeWallet) Sign(unsignedTxBase64 string) (string, error) { return "c2lnbmVk", nil }

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestConditionMetMcap(t *testing.T) {
	target := &ledger.SellTarget{Type: ledger.TargetMcap, TargetValue: decimal.NewFromInt(1000000)}
	if conditionMet(target, decimal.Zero, decimal.NewFromInt(999999)) {
		t.Fatal("should not trigger below target mcap")
	}
	if !conditionMet(target, decimal.Zero, decimal.NewFromInt(1000000)) {
		t.Fatal("should trigger at target mcap")
	}
}

func TestConditionMetPrice(t *testing.T) {
	target := &ledger.SellTarget{Type: ledger.TargetPrice, TargetValue: decimal.NewFromFloat(0.5)}
	if conditionMet(target, decimal.NewFromFloat(0.49), decimal.Zero) {
		t.Fatal("should not trigger below target price")
	}
	if !conditionMet(target, decimal.NewFromFloat(0.5), decimal.Zero) {
		t.Fatal("should trigger at target price")
	}
}

func TestConditionMetPctGain(t *testing.T) {
	target := &ledger.SellTarget{Type: ledger.TargetPctGain, TargetValue: decimal.NewFromInt(50), EntryPrice: decimal.NewFromFloat(0.1)}
	if conditionMet(target, decimal.NewFromFloat(0.14), decimal.Zero) {
		t.Fatal("40% gain should not trigger 50% target")
	}
	if !conditionMet(target, decimal.NewFromFloat(0.15), decimal.Zero) {
		t.Fatal("50% gain should trigger")
	}
}

func TestConditionMetTrailingStop(t *testing.T) {
	peak := decimal.NewFromFloat(1.0)
	target := &ledger.SellTarget{Type: ledger.TargetTrailingStop, TargetValue: decimal.NewFromInt(20), PeakValue: &peak}
	if conditionMet(target, decimal.NewFromFloat(0.81), decimal.Zero) {
		t.Fatal("19% drop should not trigger 20% stop")
	}
	if !conditionMet(target, decimal.NewFromFloat(0.80), decimal.Zero) {
		t.Fatal("20% drop should trigger")
	}
}

func TestParseSellAmountAll(t *testing.T) {
	amount, _, isUSD := parseSellAmount("all", decimal.NewFromInt(100), decimal.NewFromFloat(0.1))
	if isUSD || !amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("amount=%s isUSD=%v", amount, isUSD)
	}
}

func TestParseSellAmountPercent(t *testing.T) {
	amount, _, isUSD := parseSellAmount("25%", decimal.NewFromInt(100), decimal.NewFromFloat(0.1))
	if isUSD || !amount.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("amount=%s isUSD=%v", amount, isUSD)
	}
}

func TestParseSellAmountUSD(t *testing.T) {
	amount, usd, isUSD := parseSellAmount("USD:10", decimal.NewFromInt(1000), decimal.NewFromFloat(0.1))
	if !isUSD {
		t.Fatal("expected isUSD")
	}
	if !usd.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("usd=%s", usd)
	}
	// naive estimate = 10/0.1 = 100 tokens
	if !amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("amount=%s", amount)
	}
}

func TestParseSellAmountUSDCapsAtHoldings(t *testing.T) {
	amount, _, isUSD := parseSellAmount("USD:1000", decimal.NewFromInt(50), decimal.NewFromFloat(0.1))
	if !isUSD || !amount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected amount capped at holdings, got %s isUSD=%v", amount, isUSD)
	}
}

// newTestEngine wires a full Tick-capable Engine against httptest servers,
// for exercising the trigger -> synthesize-sell path end to end.
func newTestEngine(t *testing.T, jupSrv, priceSrv *httptest.Server) (*Engine, *ledger.Ledger) {
	t.Helper()
	l := openTestLedger(t)

	jc := jupiter.NewClient(5*time.Second, []string{"k"})
	jc.SetBaseURL(jupSrv.URL)

	pc := jupiterprice.NewClient(5*time.Second, "")
	pc.SetBaseURLs(priceSrv.URL, priceSrv.URL)

	quoter := quote.NewEngine(quote.Dependencies{
		TakerAddress: "wallet123",
		Jupiter:      jc,
		Prices:       pc,
		Rugcheck:     nil,
		Intents:      l.Intents(),
		PolicyCfg: policy.Config{
			MaxSlippageBps: 1000,
			MaxTradeUSD:    decimal.NewFromInt(100000),
		},
	})
	execer := execengine.NewEngine(execengine.Dependencies{
		Wallet:  fakeWallet{},
		Jupiter: jc,
		Prices:  pc,
		Intents: l.Intents(),
		Ledger:  l,
	})

	e := NewEngine(Dependencies{
		Ledger:   l,
		Prices:   pc,
		Mcap:     pc,
		Holdings: fakeHoldings{holdings: decimal.NewFromInt(100)},
		Quoter:   quoter,
		Execer:   execer,
	})
	return e, l
}

type fakeHoldings struct {
	holdings decimal.Decimal
}

func (f fakeHoldings) Holdings(ctx context.Context, mint string) (decimal.Decimal, error) {
	return f.holdings, nil
}

func TestTickTriggersPriceTargetAndExecutes(t *testing.T) {
	priceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			bonkMint: map[string]any{"usdPrice": "0.5"},
		})
	}))
	defer priceSrv.Close()

	jupSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/order" || r.URL.Query().Get("inputMint") != "":
			json.NewEncoder(w).Encode(map[string]any{
				"transaction": "dGVzdA==",
				"outAmount":   "900000000",
				"requestId":   "req-1",
			})
		default:
			json.NewEncoder(w).Encode(jupiter.ExecuteResult{Status: "Success", Signature: "sig-sell", OutputAmountResult: "900000000"})
		}
	}))
	defer jupSrv.Close()

	e, l := newTestEngine(t, jupSrv, priceSrv)

	ctx := context.Background()
	if err := l.InsertTarget(ctx, &ledger.SellTarget{
		Mint: bonkMint, Symbol: "BONK", Type: ledger.TargetPrice,
		TargetValue: decimal.NewFromFloat(0.4), SellAmount: "all",
		EntryPrice: decimal.NewFromFloat(0.1),
	}); err != nil {
		t.Fatalf("insert target: %v", err)
	}

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	all, err := l.AllTargets(ctx)
	if err != nil {
		t.Fatalf("AllTargets: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 target, got %d", len(all))
	}
	if all[0].Status != ledger.TargetExecuted {
		t.Fatalf("expected executed, got %s", all[0].Status)
	}
}

func TestTickLeavesTargetPendingWhenConditionUnmet(t *testing.T) {
	priceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			bonkMint: map[string]any{"usdPrice": "0.2"},
		})
	}))
	defer priceSrv.Close()
	jupSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer jupSrv.Close()

	e, l := newTestEngine(t, jupSrv, priceSrv)
	ctx := context.Background()
	if err := l.InsertTarget(ctx, &ledger.SellTarget{
		Mint: bonkMint, Symbol: "BONK", Type: ledger.TargetPrice,
		TargetValue: decimal.NewFromFloat(0.4), SellAmount: "all",
		EntryPrice: decimal.NewFromFloat(0.1),
	}); err != nil {
		t.Fatalf("insert target: %v", err)
	}

	if err := e.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	all, _ := l.AllTargets(ctx)
	if all[0].Status != ledger.TargetPending {
		t.Fatalf("expected still pending, got %s", all[0].Status)
	}
}
