// Package quote is the QuoteEngine component: turns a from/to/amount
// request into a policy-checked, aggregator-priced intent ready for
// ExecEngine to confirm. No transaction is ever submitted here.
package quote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"slopesniper/internal/jupiter"
	"slopesniper/internal/jupiterprice"
	"slopesniper/internal/ledger"
	"slopesniper/internal/policy"
	"slopesniper/internal/rugcheck"
	"slopesniper/internal/token"
)

var (
	ErrInvalidFromMint = errors.New("quote: from_mint must be a valid mint address, not a symbol")
	ErrInvalidToMint   = errors.New("quote: to_mint must be a valid mint address, not a symbol")
	ErrInvalidAmount   = errors.New("quote: invalid amount")
	ErrNoTransaction   = errors.New("quote: no transaction returned from quote")
)

// PolicyBlockedError is returned when the policy engine rejects a trade.
// Callers can inspect Result for the passed/failed check labels.
type PolicyBlockedError struct {
	Result policy.Result
}

func (e *PolicyBlockedError) Error() string {
	return fmt.Sprintf("quote: policy blocked: %s", e.Result.Reason)
}

// QuoteFailedError wraps an aggregator-reported error code/message.
type QuoteFailedError struct {
	Code    string
	Message string
}

func (e *QuoteFailedError) Error() string {
	return fmt.Sprintf("quote: aggregator rejected quote (%s): %s", e.Code, e.Message)
}

// Dependencies wires QuoteEngine to the external clients and storage it
// needs. All fields are required.
type Dependencies struct {
	TakerAddress string // wallet address quotes are built for; signing happens in ExecEngine
	Jupiter      *jupiter.Client
	Prices       *jupiterprice.Client
	Rugcheck     *rugcheck.Client
	Intents      ledger.IntentStore
	PolicyCfg    policy.Config
}

// Engine is the QuoteEngine.
type Engine struct {
	deps Dependencies
}

// NewEngine builds a QuoteEngine from its dependencies.
func NewEngine(deps Dependencies) *Engine {
	return &Engine{deps: deps}
}

// Request is a proposed swap to quote.
type Request struct {
	FromMint    string
	ToMint      string
	Amount      string // UI units, e.g. "1.5"
	SlippageBps int
}

// Result is the created intent plus enough detail for a caller to
// decide whether to confirm it.
type Result struct {
	IntentID       uuid.UUID
	FromMint       string
	ToMint         string
	InAmount       string
	OutAmountEst   string
	PriceImpactPct float64
	RouteSummary   string
	ExpiresAt      time.Time
	ChecksPassed   []string
}

// Quote validates the request, prices it, runs the policy gates, and —
// if allowed — requests an order from the aggregator and persists the
// result as an Intent. It never submits anything on chain.
func (e *Engine) Quote(ctx context.Context, req Request) (*Result, error) {
	if !token.IsMintAddress(req.FromMint) {
		return nil, ErrInvalidFromMint
	}
	if !token.IsMintAddress(req.ToMint) {
		return nil, ErrInvalidToMint
	}

	amountFloat, err := strconv.ParseFloat(req.Amount, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, req.Amount)
	}

	decimals := token.Decimals(req.FromMint)
	amountAtomic := uint64(amountFloat * pow10(decimals))

	amountUSD := decimal.Zero
	if priceUSD, ok, perr := e.deps.Prices.GetPrice(ctx, req.FromMint); perr == nil && ok {
		amountUSD = decimal.NewFromFloat(amountFloat).Mul(priceUSD)
	} else if perr != nil {
		log.Warn().Err(perr).Str("mint", req.FromMint).Msg("quote: price lookup failed, treating amount_usd as 0")
	}

	var rugResult *policy.RugcheckResult
	if !policy.IsKnownSafeMint(req.ToMint) {
		summary, rerr := e.deps.Rugcheck.GetReportSummary(ctx, req.ToMint)
		if rerr != nil {
			log.Warn().Err(rerr).Str("mint", req.ToMint).Msg("quote: rugcheck failed, proceeding without a score")
		} else {
			rugResult = rugcheck.ToPolicyResult(summary)
		}
	}

	policyResult := policy.Check(policy.Input{
		FromMint:    req.FromMint,
		ToMint:      req.ToMint,
		AmountUSD:   amountUSD,
		SlippageBps: req.SlippageBps,
		Rugcheck:    rugResult,
		Config:      e.deps.PolicyCfg,
	})
	if !policyResult.Allowed {
		return nil, &PolicyBlockedError{Result: policyResult}
	}

	order, err := e.deps.Jupiter.GetOrder(ctx, jupiter.OrderParams{
		InputMint:    req.FromMint,
		OutputMint:   req.ToMint,
		AmountAtomic: amountAtomic,
		Taker:        e.deps.TakerAddress,
		SlippageBps:  req.SlippageBps,
	})
	if err != nil {
		return nil, fmt.Errorf("quote: get order: %w", err)
	}
	if order.ErrorCode != "" {
		return nil, &QuoteFailedError{Code: order.ErrorCode, Message: order.ErrorMessage}
	}
	if order.Transaction == "" {
		return nil, ErrNoTransaction
	}

	outDecimals := token.Decimals(req.ToMint)
	outAtomic, _ := decimal.NewFromString(order.OutAmount)
	outAmountUI := outAtomic.Div(decimal.New(1, int32(outDecimals)))

	intentID, err := e.deps.Intents.Create(ctx, ledger.CreateIntentParams{
		FromMint:     req.FromMint,
		ToMint:       req.ToMint,
		Amount:       req.Amount,
		SlippageBps:  req.SlippageBps,
		OutAmountEst: outAmountUI.String(),
		UnsignedTx:   order.Transaction,
		RequestID:    order.RequestID,
	})
	if err != nil {
		return nil, fmt.Errorf("quote: create intent: %w", err)
	}

	intent, err := e.deps.Intents.Get(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("quote: reload intent: %w", err)
	}

	routeSummary := e.routeSummary(ctx, req.FromMint, req.ToMint)

	return &Result{
		IntentID:       intentID,
		FromMint:       req.FromMint,
		ToMint:         req.ToMint,
		InAmount:       req.Amount,
		OutAmountEst:   outAmountUI.String(),
		PriceImpactPct: order.PriceImpact,
		RouteSummary:   routeSummary,
		ExpiresAt:      intent.ExpiresAt,
		ChecksPassed:   policyResult.ChecksPassed,
	}, nil
}

// routeSummary builds "FROM -> TO", checking the baked symbol table
// first and falling back to an aggregator token-info lookup, mirroring
// the precedence the original quote tool used.
func (e *Engine) routeSummary(ctx context.Context, fromMint, toMint string) string {
	fromSymbol := e.symbolFor(ctx, fromMint)
	toSymbol := e.symbolFor(ctx, toMint)
	return fmt.Sprintf("%s -> %s", fromSymbol, toSymbol)
}

func (e *Engine) symbolFor(ctx context.Context, mint string) string {
	if sym, ok := token.KnownSymbolForMint(mint); ok {
		return sym
	}
	results, err := e.deps.Prices.SearchToken(ctx, mint)
	if err == nil && len(results) > 0 && results[0].Symbol != "" {
		return results[0].Symbol
	}
	return shortMint(mint)
}

func shortMint(mint string) string {
	if len(mint) > 8 {
		return mint[:4] + "…" + mint[len(mint)-4:]
	}
	return mint
}

func pow10(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}
