package execengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"slopesniper/internal/jupiter"
	"slopesniper/internal/jupiterprice"
	"slopesniper/internal/ledger"
)

const solMint = "So11111111111111111111111111111111111111112"
const bonkMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

type fakeWallet struct {
	signed string
	err    error
}

func (w fakeWallet) Sign(unsignedTxBase64 string) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	return w.signed, nil
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

func newTestEngine(t *testing.T, jupSrv, priceSrv *httptest.Server) (*Engine, *ledger.Ledger) {
	t.Helper()
	l := openTestLedger(t)

	jc := jupiter.NewClient(5*time.Second, []string{"k"})
	jc.SetBaseURL(jupSrv.URL)

	pc := jupiterprice.NewClient(5*time.Second, "")
	pc.SetBaseURLs(priceSrv.URL, priceSrv.URL)

	e := NewEngine(Dependencies{
		Wallet:  fakeWallet{signed: "c2lnbmVk"},
		Jupiter: jc,
		Prices:  pc,
		Intents: l.Intents(),
		Ledger:  l,
	})
	return e, l
}

func TestConfirmUnknownIntent(t *testing.T) {
	priceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer priceSrv.Close()
	jupSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer jupSrv.Close()

	e, _ := newTestEngine(t, jupSrv, priceSrv)
	_, err := e.Confirm(context.Background(), uuid.New())
	if err != ErrIntentNotFound {
		t.Fatalf("expected ErrIntentNotFound, got %v", err)
	}
}

func TestConfirmSuccessRecordsTradeAndMarksExecuted(t *testing.T) {
	priceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			bonkMint: map[string]any{"usdPrice": "0.00002"},
		})
	}))
	defer priceSrv.Close()

	jupSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jupiter.ExecuteResult{
			Status: "Success", Signature: "sig-1", OutputAmountResult: "1000000000",
		})
	}))
	defer jupSrv.Close()

	e, l := newTestEngine(t, jupSrv, priceSrv)

	intentID, err := l.Intents().Create(context.Background(), ledger.CreateIntentParams{
		FromMint: solMint, ToMint: bonkMint, Amount: "1", SlippageBps: 50,
		OutAmountEst: "20000", UnsignedTx: "dGVzdA==", RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	res, err := e.Confirm(context.Background(), intentID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !res.Success || res.Signature != "sig-1" {
		t.Fatalf("unexpected result: %+v", res)
	}

	intent, err := l.Intents().Get(context.Background(), intentID)
	if err != nil {
		t.Fatalf("get intent: %v", err)
	}
	if intent == nil || !intent.Executed {
		t.Fatal("expected intent to still load, flagged executed")
	}

	trades, err := l.Trades(context.Background(), bonkMint, 10)
	if err != nil {
		t.Fatalf("trades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected exactly 1 trade, got %d", len(trades))
	}
	if trades[0].Action != "buy" {
		t.Fatalf("action = %q", trades[0].Action)
	}
}

func TestConfirmRejectsAlreadyExecuted(t *testing.T) {
	priceSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer priceSrv.Close()
	jupSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jupiter.ExecuteResult{Status: "Success", Signature: "sig-2", OutputAmountResult: "1000000000"})
	}))
	defer jupSrv.Close()

	e, l := newTestEngine(t, jupSrv, priceSrv)

	intentID, err := l.Intents().Create(context.Background(), ledger.CreateIntentParams{
		FromMint: solMint, ToMint: bonkMint, Amount: "1", SlippageBps: 50,
		OutAmountEst: "20000", UnsignedTx: "dGVzdA==", RequestID: "req-2",
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if _, err := e.Confirm(context.Background(), intentID); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if _, err := e.Confirm(context.Background(), intentID); err != ErrIntentAlreadyExecuted {
		t.Fatalf("expected ErrIntentAlreadyExecuted on replay, got %v", err)
	}
}
