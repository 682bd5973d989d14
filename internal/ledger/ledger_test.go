package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestStrategySingleActiveInvariant(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	id1, err := l.UpsertStrategy(ctx, &Strategy{
		Name: "conservative", Description: "safe", MaxTradeUSD: decimal.NewFromInt(25),
		AutoExecuteUnderUSD: decimal.NewFromInt(10), MaxLossPct: decimal.NewFromInt(5), SlippageBps: 50,
	})
	if err != nil {
		t.Fatalf("UpsertStrategy: %v", err)
	}
	id2, err := l.UpsertStrategy(ctx, &Strategy{
		Name: "balanced", Description: "moderate", MaxTradeUSD: decimal.NewFromInt(100),
		AutoExecuteUnderUSD: decimal.NewFromInt(25), MaxLossPct: decimal.NewFromInt(10), SlippageBps: 100,
	})
	if err != nil {
		t.Fatalf("UpsertStrategy: %v", err)
	}

	if err := l.SetActiveStrategy(ctx, id1); err != nil {
		t.Fatalf("SetActiveStrategy: %v", err)
	}
	if err := l.SetActiveStrategy(ctx, id2); err != nil {
		t.Fatalf("SetActiveStrategy: %v", err)
	}

	active, err := l.ActiveStrategy(ctx)
	if err != nil {
		t.Fatalf("ActiveStrategy: %v", err)
	}
	if active == nil || active.ID != id2 {
		t.Fatalf("expected strategy %d active, got %+v", id2, active)
	}

	all, err := l.ListStrategies(ctx)
	if err != nil {
		t.Fatalf("ListStrategies: %v", err)
	}
	activeCount := 0
	for _, s := range all {
		if s.IsActive {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Fatalf("expected exactly one active strategy, got %d", activeCount)
	}
}

func TestInsertAndListTrades(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	trade := &Trade{
		Action: "buy", Mint: "So11111111111111111111111111111111111111112", Symbol: "SOL",
		AmountTokens: decimal.NewFromFloat(1.5), AmountUSD: decimal.NewFromFloat(150.25),
		PricePerToken: decimal.NewFromFloat(100.1667), TxSignature: "sig123",
	}
	if err := l.InsertTrade(ctx, trade); err != nil {
		t.Fatalf("InsertTrade: %v", err)
	}

	trades, err := l.Trades(ctx, "", 10)
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if !trades[0].AmountUSD.Equal(trade.AmountUSD) {
		t.Fatalf("amount mismatch: got %s want %s", trades[0].AmountUSD, trade.AmountUSD)
	}
}

func TestIntentCreateGetMarkExecuted(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	store := l.Intents()

	id, err := store.Create(ctx, CreateIntentParams{
		FromMint: "A", ToMint: "B", Amount: "1.0", SlippageBps: 50,
		OutAmountEst: "99.5", UnsignedTx: "base64tx", RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	intent, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if intent == nil {
		t.Fatal("expected intent to be found")
	}
	if intent.Executed {
		t.Fatal("new intent should not be executed")
	}

	ok, err := store.MarkExecuted(ctx, id)
	if err != nil {
		t.Fatalf("MarkExecuted: %v", err)
	}
	if !ok {
		t.Fatal("first MarkExecuted should succeed")
	}

	ok2, err := store.MarkExecuted(ctx, id)
	if err != nil {
		t.Fatalf("MarkExecuted (second): %v", err)
	}
	if ok2 {
		t.Fatal("second MarkExecuted should report false (replay protection)")
	}
}

func TestIntentNotFoundAfterExpiry(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	// Manually insert an already-expired intent to avoid depending on
	// wall-clock sleeps.
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO intents (id, from_mint, to_mint, amount, slippage_bps, out_amount_est, unsigned_tx, request_id, created_at, expires_at, executed)
		VALUES ('00000000-0000-0000-0000-000000000001', 'A', 'B', '1', 50, '1', 'tx', 'req', 0, 0, 0)`)
	if err != nil {
		t.Fatalf("seed expired intent: %v", err)
	}

	store := l.Intents()
	id := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	intent, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if intent != nil {
		t.Fatal("expired intent should not be returned")
	}
}

func TestSellTargetLifecycle(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	target := &SellTarget{
		Mint: "MINT", Symbol: "TOK", Type: TargetPctGain,
		TargetValue: decimal.NewFromInt(50), SellAmount: "all", EntryPrice: decimal.NewFromFloat(1.0),
	}
	if err := l.InsertTarget(ctx, target); err != nil {
		t.Fatalf("InsertTarget: %v", err)
	}

	active, err := l.ActiveTargets(ctx)
	if err != nil {
		t.Fatalf("ActiveTargets: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active target, got %d", len(active))
	}

	triggered, err := l.MarkTriggered(ctx, target.ID, decimal.NewFromFloat(1.5))
	if err != nil {
		t.Fatalf("MarkTriggered: %v", err)
	}
	if !triggered {
		t.Fatal("expected MarkTriggered to succeed")
	}

	// Triggering again should be a no-op (already past pending).
	triggeredAgain, err := l.MarkTriggered(ctx, target.ID, decimal.NewFromFloat(2.0))
	if err != nil {
		t.Fatalf("MarkTriggered (again): %v", err)
	}
	if triggeredAgain {
		t.Fatal("re-triggering an already-triggered target should be a no-op")
	}

	if err := l.MarkTargetExecuted(ctx, target.ID, "sig-abc"); err != nil {
		t.Fatalf("MarkTargetExecuted: %v", err)
	}

	got, err := l.GetTarget(ctx, target.ID)
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	if got.Status != TargetExecuted {
		t.Fatalf("status = %v, want %v", got.Status, TargetExecuted)
	}
}

func TestTrailingStopSeedsPeakAndBumps(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	target := &SellTarget{
		Mint: "MINT", Symbol: "TOK", Type: TargetTrailingStop,
		TargetValue: decimal.NewFromInt(10), SellAmount: "all", EntryPrice: decimal.NewFromFloat(2.0),
	}
	if err := l.InsertTarget(ctx, target); err != nil {
		t.Fatalf("InsertTarget: %v", err)
	}
	if target.PeakValue == nil || !target.PeakValue.Equal(decimal.NewFromFloat(2.0)) {
		t.Fatalf("expected peak seeded to entry price, got %v", target.PeakValue)
	}

	if err := l.BumpTrailingPeak(ctx, target.ID, decimal.NewFromFloat(3.0)); err != nil {
		t.Fatalf("BumpTrailingPeak: %v", err)
	}
	got, err := l.GetTarget(ctx, target.ID)
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	if got.PeakValue == nil || !got.PeakValue.Equal(decimal.NewFromFloat(3.0)) {
		t.Fatalf("expected peak bumped to 3.0, got %v", got.PeakValue)
	}

	// Bumping with a lower price should not lower the peak.
	if err := l.BumpTrailingPeak(ctx, target.ID, decimal.NewFromFloat(1.0)); err != nil {
		t.Fatalf("BumpTrailingPeak (lower): %v", err)
	}
	got2, _ := l.GetTarget(ctx, target.ID)
	if !got2.PeakValue.Equal(decimal.NewFromFloat(3.0)) {
		t.Fatalf("peak should not decrease, got %v", got2.PeakValue)
	}
}
