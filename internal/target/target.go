// Package target is the TargetEngine component: evaluates pending sell
// targets against live price/mcap/peak every tick, fires synthesized
// sells through the same quote/confirm path a manual trade would use,
// and advances the target state machine.
package target

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"slopesniper/internal/execengine"
	"slopesniper/internal/jupiterprice"
	"slopesniper/internal/ledger"
	"slopesniper/internal/pricecache"
	"slopesniper/internal/quote"
)

// priceCacheTTL bounds how long a batch-fetched price is reused across
// ticks before the next tick re-fetches it from Jupiter.
const priceCacheTTL = 10 * time.Second

// SolMint is the wrapped-SOL mint every synthesized sell trades against.
const SolMint = "So11111111111111111111111111111111111111112"

// correctedAmountDriftPct is how far a naive USD:X amount estimate can
// differ from its quote-derived correction before we bother re-quoting.
const correctedAmountDriftPct = 1.0

// PriceSource batches current USD prices for a set of mints.
type PriceSource interface {
	GetPrices(ctx context.Context, mints []string) (map[string]decimal.Decimal, error)
}

// McapSource resolves a mint's current market cap, fetched only for
// mcap-kind targets to avoid excess calls.
type McapSource interface {
	SearchToken(ctx context.Context, query string) ([]jupiterprice.TokenInfo, error)
}

// HoldingsSource answers the current UI-unit balance for a mint.
// Satisfied by *pnl.Engine.
type HoldingsSource interface {
	Holdings(ctx context.Context, mint string) (decimal.Decimal, error)
}

// Dependencies wires TargetEngine to the rest of the trading core. All
// fields are required.
type Dependencies struct {
	Ledger   *ledger.Ledger
	Prices   PriceSource
	Mcap     McapSource
	Holdings HoldingsSource
	Quoter   *quote.Engine
	Execer   *execengine.Engine
	Cache    *pricecache.Cache // optional; nil disables caching
}

// Engine is the TargetEngine.
type Engine struct {
	deps Dependencies
}

// NewEngine builds a TargetEngine from its dependencies.
func NewEngine(deps Dependencies) *Engine {
	return &Engine{deps: deps}
}

// Tick evaluates every pending target once. A single bad target never
// blocks the rest: a per-target failure is logged and the loop
// continues, mirroring the teacher's per-position continue-on-error
// monitoring loop.
func (e *Engine) Tick(ctx context.Context) error {
	targets, err := e.deps.Ledger.ActiveTargets(ctx)
	if err != nil {
		return fmt.Errorf("target: load active targets: %w", err)
	}
	if len(targets) == 0 {
		return nil
	}

	mints := uniqueTargetMints(targets)
	prices, err := e.batchPrices(ctx, mints)
	if err != nil {
		return fmt.Errorf("target: batch price fetch: %w", err)
	}

	mcaps := map[string]decimal.Decimal{}
	for _, t := range targets {
		if t.Type != ledger.TargetMcap {
			continue
		}
		if _, ok := mcaps[t.Mint]; ok {
			continue
		}
		mcap, err := e.fetchMcap(ctx, t.Mint)
		if err != nil {
			log.Warn().Err(err).Str("mint", t.Mint).Msg("target: mcap fetch failed")
			continue
		}
		mcaps[t.Mint] = mcap
	}

	for _, t := range targets {
		if err := e.evaluateOne(ctx, t, prices[t.Mint], mcaps[t.Mint]); err != nil {
			log.Error().Err(err).Str("target_id", t.ID.String()).Str("mint", t.Mint).Msg("target: evaluation failed, continuing")
		}
	}
	return nil
}

// batchPrices serves as many mints as possible from the shared cache,
// and only asks the Jupiter price endpoint for the rest, caching what it
// gets back for the next tick.
func (e *Engine) batchPrices(ctx context.Context, mints []string) (map[string]decimal.Decimal, error) {
	if e.deps.Cache == nil {
		return e.deps.Prices.GetPrices(ctx, mints)
	}

	result := map[string]decimal.Decimal{}
	var misses []string
	for _, mint := range mints {
		if price, ok := e.deps.Cache.Get(ctx, mint); ok {
			result[mint] = price
		} else {
			misses = append(misses, mint)
		}
	}
	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := e.deps.Prices.GetPrices(ctx, misses)
	if err != nil {
		return nil, err
	}
	for mint, price := range fetched {
		result[mint] = price
		e.deps.Cache.Set(ctx, mint, price, priceCacheTTL)
	}
	return result, nil
}

func (e *Engine) fetchMcap(ctx context.Context, mint string) (decimal.Decimal, error) {
	results, err := e.deps.Mcap.SearchToken(ctx, mint)
	if err != nil {
		return decimal.Zero, err
	}
	if len(results) == 0 {
		return decimal.Zero, errors.New("target: no token info returned")
	}
	return decimal.NewFromFloat(results[0].MCap), nil
}

func (e *Engine) evaluateOne(ctx context.Context, t *ledger.SellTarget, price, mcap decimal.Decimal) error {
	if price.IsZero() {
		return fmt.Errorf("no price available for %s", t.Mint)
	}

	if t.Type == ledger.TargetTrailingStop {
		if err := e.deps.Ledger.BumpTrailingPeak(ctx, t.ID, price); err != nil {
			return fmt.Errorf("bump trailing peak: %w", err)
		}
		if t.PeakValue == nil || price.GreaterThan(*t.PeakValue) {
			t.PeakValue = &price
		}
	}

	if !conditionMet(t, price, mcap) {
		return nil
	}

	ok, err := e.deps.Ledger.MarkTriggered(ctx, t.ID, price)
	if err != nil {
		return fmt.Errorf("mark triggered: %w", err)
	}
	if !ok {
		return nil // already triggered by a concurrent tick
	}

	result, err := e.synthSell(ctx, t, price)
	if err != nil {
		// Stays "triggered": retried on the next tick, per spec's
		// fire-and-retry rule for a synthesized sell that didn't land.
		return fmt.Errorf("synthesize sell: %w", err)
	}
	if result.Success {
		if err := e.deps.Ledger.MarkTargetExecuted(ctx, t.ID, result.Signature); err != nil {
			return fmt.Errorf("mark executed: %w", err)
		}
	}
	return nil
}

// conditionMet evaluates the four predicates verbatim.
func conditionMet(t *ledger.SellTarget, price, mcap decimal.Decimal) bool {
	switch t.Type {
	case ledger.TargetMcap:
		return mcap.GreaterThanOrEqual(t.TargetValue)
	case ledger.TargetPrice:
		return price.GreaterThanOrEqual(t.TargetValue)
	case ledger.TargetPctGain:
		if t.EntryPrice.LessThanOrEqual(decimal.Zero) {
			return false
		}
		gainPct := price.Sub(t.EntryPrice).Div(t.EntryPrice).Mul(decimal.NewFromInt(100))
		return gainPct.GreaterThanOrEqual(t.TargetValue)
	case ledger.TargetTrailingStop:
		if t.PeakValue == nil || t.PeakValue.LessThanOrEqual(decimal.Zero) {
			return false
		}
		dropPct := t.PeakValue.Sub(price).Div(*t.PeakValue).Mul(decimal.NewFromInt(100))
		return dropPct.GreaterThanOrEqual(t.TargetValue)
	default:
		return false
	}
}

// synthSell resolves the sell_amount spec, quotes mint->SOL for it, and
// confirms the resulting intent.
func (e *Engine) synthSell(ctx context.Context, t *ledger.SellTarget, evalPrice decimal.Decimal) (*execengine.Result, error) {
	strategy, err := e.deps.Ledger.ActiveStrategy(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active strategy: %w", err)
	}
	slippageBps := 50
	if strategy != nil {
		slippageBps = strategy.SlippageBps
	}

	holdings, err := e.deps.Holdings.Holdings(ctx, t.Mint)
	if err != nil {
		return nil, fmt.Errorf("load holdings: %w", err)
	}
	if holdings.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("no holdings left to sell for %s", t.Mint)
	}

	intentID, err := e.resolveAndQuote(ctx, t, evalPrice, holdings, slippageBps)
	if err != nil {
		return nil, err
	}

	return e.deps.Execer.Confirm(ctx, intentID)
}

// resolveAndQuote sizes the sell amount and returns the intent to
// confirm. "all"/"N%" size directly off holdings. "USD:X" implements
// the redesign from spec.md §9: size off the achieved per-token price
// of a first quote rather than the stale evaluation-time price, and
// re-quotes once if that correction moves the amount by more than
// correctedAmountDriftPct.
func (e *Engine) resolveAndQuote(ctx context.Context, t *ledger.SellTarget, evalPrice, holdings decimal.Decimal, slippageBps int) (uuid.UUID, error) {
	amount, usdTarget, isUSD := parseSellAmount(t.SellAmount, holdings, evalPrice)
	if !isUSD {
		res, err := e.deps.Quoter.Quote(ctx, quote.Request{FromMint: t.Mint, ToMint: SolMint, Amount: amount.String(), SlippageBps: slippageBps})
		if err != nil {
			return uuid.Nil, err
		}
		return res.IntentID, nil
	}

	firstRes, err := e.deps.Quoter.Quote(ctx, quote.Request{FromMint: t.Mint, ToMint: SolMint, Amount: amount.String(), SlippageBps: slippageBps})
	if err != nil {
		return uuid.Nil, err
	}

	outAmount, _ := decimal.NewFromString(firstRes.OutAmountEst)
	if amount.LessThanOrEqual(decimal.Zero) || outAmount.LessThanOrEqual(decimal.Zero) {
		return firstRes.IntentID, nil
	}
	achievedPrice := outAmount.Div(amount)
	corrected := usdTarget.Div(achievedPrice)
	if corrected.GreaterThan(holdings) {
		corrected = holdings
	}

	drift := corrected.Sub(amount).Abs().Div(amount).Mul(decimal.NewFromInt(100))
	if drift.LessThan(decimal.NewFromFloat(correctedAmountDriftPct)) {
		return firstRes.IntentID, nil
	}

	secondRes, err := e.deps.Quoter.Quote(ctx, quote.Request{FromMint: t.Mint, ToMint: SolMint, Amount: corrected.String(), SlippageBps: slippageBps})
	if err != nil {
		return firstRes.IntentID, nil // fall back to the first quote rather than fail the sell
	}
	return secondRes.IntentID, nil
}

// parseSellAmount interprets "all"/"100%", "N%", and "USD:X". Returns
// isUSD=true with the naive X/evalPrice estimate and the raw USD target
// when the spec is a USD amount, so the caller can later correct it
// against a realized quote.
func parseSellAmount(spec string, holdings, evalPrice decimal.Decimal) (amount, usdTarget decimal.Decimal, isUSD bool) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "all" || spec == "100%":
		return holdings, decimal.Zero, false
	case strings.HasSuffix(spec, "%"):
		pctStr := strings.TrimSuffix(spec, "%")
		pct, err := strconv.ParseFloat(pctStr, 64)
		if err != nil {
			return holdings, decimal.Zero, false
		}
		return holdings.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100)), decimal.Zero, false
	case strings.HasPrefix(spec, "USD:"):
		usdStr := strings.TrimPrefix(spec, "USD:")
		x, err := strconv.ParseFloat(usdStr, 64)
		if err != nil || evalPrice.LessThanOrEqual(decimal.Zero) {
			return holdings, decimal.Zero, false
		}
		usd := decimal.NewFromFloat(x)
		naive := usd.Div(evalPrice)
		if naive.GreaterThan(holdings) {
			naive = holdings
		}
		return naive, usd, true
	default:
		return holdings, decimal.Zero, false
	}
}

func uniqueTargetMints(targets []*ledger.SellTarget) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range targets {
		if !seen[t.Mint] {
			seen[t.Mint] = true
			out = append(out, t.Mint)
		}
	}
	return out
}
