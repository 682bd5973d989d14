// Package pnl is the PnLEngine component: derives per-token and
// portfolio profit/loss from trade history and live prices, manages the
// baseline snapshot, and exports trade history.
package pnl

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"slopesniper/internal/ledger"
)

// PriceLookup answers current USD prices for mints, e.g. jupiterprice.Client.
type PriceLookup interface {
	GetPrice(ctx context.Context, mint string) (decimal.Decimal, bool, error)
}

// Engine is the PnLEngine.
type Engine struct {
	ledger *ledger.Ledger
	prices PriceLookup
}

// NewEngine builds a PnLEngine over the ledger's trade history and a
// live price source.
func NewEngine(l *ledger.Ledger, prices PriceLookup) *Engine {
	return &Engine{ledger: l, prices: prices}
}

// TokenPnL is the per-mint aggregation described by spec §4.9.
type TokenPnL struct {
	Mint          string
	Symbol        string
	BoughtTokens  decimal.Decimal
	BoughtUSD     decimal.Decimal
	SoldTokens    decimal.Decimal
	SoldUSD       decimal.Decimal
	AvgBuyPrice   decimal.Decimal
	Holdings      decimal.Decimal
	CurrentPrice  decimal.Decimal
	HoldingsValue decimal.Decimal
	CostBasis     decimal.Decimal
	Realized      decimal.Decimal
	Unrealized    decimal.Decimal
	Total         decimal.Decimal
}

// Portfolio is the rollup across every mint ever traded, plus the
// baseline snapshot's anchor for cumulative-gain reporting.
type Portfolio struct {
	Tokens        []TokenPnL
	TotalRealized decimal.Decimal
	TotalUnrealized decimal.Decimal
	TotalValue    decimal.Decimal // USD value of current token holdings; the wallet's SOL balance is not included
	Baseline      decimal.Decimal
	HasBaseline   bool
}

// PerToken aggregates every trade for mint into the spec's TokenPnL
// formulas: avg_buy_price, holdings, holdings_value, cost_basis,
// realized, unrealized, total.
func (e *Engine) PerToken(ctx context.Context, mint string) (*TokenPnL, error) {
	trades, err := e.ledger.Trades(ctx, mint, 0)
	if err != nil {
		return nil, fmt.Errorf("pnl: load trades: %w", err)
	}

	t := &TokenPnL{Mint: mint, BoughtTokens: decimal.Zero, BoughtUSD: decimal.Zero, SoldTokens: decimal.Zero, SoldUSD: decimal.Zero}
	for _, trade := range trades {
		t.Symbol = trade.Symbol
		switch trade.Action {
		case "buy":
			t.BoughtTokens = t.BoughtTokens.Add(trade.AmountTokens)
			t.BoughtUSD = t.BoughtUSD.Add(trade.AmountUSD)
		case "sell":
			t.SoldTokens = t.SoldTokens.Add(trade.AmountTokens)
			t.SoldUSD = t.SoldUSD.Add(trade.AmountUSD)
		}
	}

	if t.BoughtTokens.GreaterThan(decimal.Zero) {
		t.AvgBuyPrice = t.BoughtUSD.Div(t.BoughtTokens)
	}

	t.Holdings = t.BoughtTokens.Sub(t.SoldTokens)

	currentPrice, ok, err := e.prices.GetPrice(ctx, mint)
	if err != nil || !ok {
		currentPrice = decimal.Zero
	}
	t.CurrentPrice = currentPrice
	t.HoldingsValue = t.Holdings.Mul(currentPrice)
	t.CostBasis = t.Holdings.Mul(t.AvgBuyPrice)
	t.Realized = t.SoldUSD.Sub(t.SoldTokens.Mul(t.AvgBuyPrice))
	t.Unrealized = t.HoldingsValue.Sub(t.CostBasis)
	t.Total = t.Realized.Add(t.Unrealized)

	return t, nil
}

// Portfolio rolls up PerToken across every mint that has ever been
// traded, and attaches the baseline snapshot if one has been set.
func (e *Engine) Portfolio(ctx context.Context) (*Portfolio, error) {
	trades, err := e.ledger.Trades(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("pnl: load trades: %w", err)
	}

	mints := uniqueMints(trades)
	sort.Strings(mints)

	p := &Portfolio{
		TotalRealized:   decimal.Zero,
		TotalUnrealized: decimal.Zero,
		TotalValue:      decimal.Zero,
	}
	for _, mint := range mints {
		tok, err := e.PerToken(ctx, mint)
		if err != nil {
			return nil, err
		}
		p.Tokens = append(p.Tokens, *tok)
		p.TotalRealized = p.TotalRealized.Add(tok.Realized)
		p.TotalUnrealized = p.TotalUnrealized.Add(tok.Unrealized)
		p.TotalValue = p.TotalValue.Add(tok.HoldingsValue)
	}

	baseline, err := e.ledger.FirstSnapshot(ctx, "init")
	if err != nil {
		return nil, fmt.Errorf("pnl: load baseline: %w", err)
	}
	if baseline != nil {
		p.Baseline = baseline.BaselineUSD
		p.HasBaseline = true
	}

	return p, nil
}

// Init records baseline as the portfolio baseline snapshot; choosing the
// value (explicit or computed from the current portfolio) is left to the
// caller. The earliest "init" snapshot is the baseline until Reset clears
// the snapshots.
func (e *Engine) Init(ctx context.Context, baseline decimal.Decimal) error {
	return e.ledger.InsertSnapshot(ctx, &ledger.Snapshot{
		Trigger:     "init",
		BaselineUSD: baseline,
		RealizedUSD: decimal.Zero,
		UnrealizedUSD: decimal.Zero,
		TotalUSD:    baseline,
	})
}

// Holdings returns the current held UI-unit balance for mint. Satisfies
// the narrow holdings-lookup interface TargetEngine needs to size
// "all"/"N%"/"USD:X" sells without depending on this package directly.
func (e *Engine) Holdings(ctx context.Context, mint string) (decimal.Decimal, error) {
	tok, err := e.PerToken(ctx, mint)
	if err != nil {
		return decimal.Zero, err
	}
	return tok.Holdings, nil
}

// Reset clears the baseline snapshot history so the next Init call
// establishes a fresh baseline. Trade history is append-only and is
// never touched by Reset.
func (e *Engine) Reset(ctx context.Context) error {
	return e.ledger.ClearSnapshots(ctx)
}

func uniqueMints(trades []*ledger.Trade) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range trades {
		if !seen[t.Mint] {
			seen[t.Mint] = true
			out = append(out, t.Mint)
		}
	}
	return out
}
